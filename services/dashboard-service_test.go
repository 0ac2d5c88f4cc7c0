package services

import (
	"testing"

	"task-manager/models"
)

func TestDistributionKey_StripsWhitespace(t *testing.T) {
	if got := distributionKey(models.StatusInProgress); got != "InProgress" {
		t.Fatalf(`expected "InProgress", got %q`, got)
	}
	if got := distributionKey(models.StatusPending); got != "Pending" {
		t.Fatalf(`expected "Pending", got %q`, got)
	}
	if got := distributionKey(models.StatusCompleted); got != "Completed" {
		t.Fatalf(`expected "Completed", got %q`, got)
	}
}
