package services

import (
	"testing"
	"time"

	"task-manager/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestBuildMemberFilter(t *testing.T) {
	filter := buildMemberFilter("")
	if filter["role"] != models.RoleMember {
		t.Fatalf("listing must be restricted to members, got %v", filter["role"])
	}
	if _, ok := filter["$or"]; ok {
		t.Fatalf("no search must mean no $or clause")
	}

	filter = buildMemberFilter("ana")
	or, ok := filter["$or"].(bson.A)
	if !ok {
		t.Fatalf("expected $or clause for search, got %v", filter["$or"])
	}
	if len(or) != 2 {
		t.Fatalf("search must match name and email, got %d clauses", len(or))
	}
	name := or[0].(bson.M)["name"].(bson.M)
	if name["$options"] != "i" {
		t.Fatalf("search must be case-insensitive")
	}
}

func TestBuildMemberFilter_EscapesRegexMeta(t *testing.T) {
	filter := buildMemberFilter("a.b+c@example.com")
	or := filter["$or"].(bson.A)
	email := or[1].(bson.M)["email"].(bson.M)
	if email["$regex"] != `a\.b\+c@example\.com` {
		t.Fatalf("regex metacharacters must be quoted, got %v", email["$regex"])
	}
}

func TestNewUserFromRegistration(t *testing.T) {
	now := time.Now()
	user := newUserFromRegistration(RegisterInput{
		Name:  "Ana & Bob's Team",
		Email: "ana&bob@example.com",
	}, models.RoleMember, "hashed", now)

	// The email is stored verbatim so login and uniqueness lookups with the
	// raw input always match.
	if user.Email != "ana&bob@example.com" {
		t.Fatalf("email must be stored verbatim, got %q", user.Email)
	}
	if user.Name != "Ana &amp; Bob&#39;s Team" {
		t.Fatalf("display name must be escaped, got %q", user.Name)
	}
	if user.Password != "hashed" {
		t.Fatalf("expected hashed password to be stored, got %q", user.Password)
	}
	if user.Role != models.RoleMember {
		t.Fatalf("expected member role, got %q", user.Role)
	}
	if user.CreatedAt != now || user.UpdatedAt != now {
		t.Fatalf("timestamps must be set from the registration instant")
	}
}

func TestCascadeFilters(t *testing.T) {
	userID := primitive.NewObjectID()
	deleteCreated, pullAssigned, pullUpdate := cascadeFilters(userID)

	// Deletion cascades over createdBy: tasks the user merely appears in as
	// an assignee survive and only lose the assignment.
	if deleteCreated["createdBy"] != userID {
		t.Fatalf("delete filter must key off createdBy, got %v", deleteCreated)
	}
	if _, ok := deleteCreated["assignedTo"]; ok {
		t.Fatalf("delete filter must not match by assignment")
	}

	if pullAssigned["assignedTo"] != userID {
		t.Fatalf("pull filter must match assigned tasks, got %v", pullAssigned)
	}
	pull, ok := pullUpdate["$pull"].(bson.M)
	if !ok {
		t.Fatalf("expected $pull update, got %v", pullUpdate)
	}
	if pull["assignedTo"] != userID {
		t.Fatalf("$pull must remove the user from assignedTo, got %v", pull)
	}
}
