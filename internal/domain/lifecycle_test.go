package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNextStatus(t *testing.T) {
	published := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		status    Status
		published bool
		op        Operation
		want      Status
		wantErr   bool
	}{
		{"publish draft", StatusDraft, false, OpPublish, StatusPublished, false},
		{"publish published", StatusPublished, true, OpPublish, StatusPublished, true},
		{"unpublish published", StatusPublished, true, OpUnpublish, StatusUnpublished, false},
		{"unpublish unpublished", StatusUnpublished, true, OpUnpublish, StatusUnpublished, false},
		{"unpublish draft", StatusDraft, false, OpUnpublish, StatusDraft, true},
		{"republish unpublished", StatusUnpublished, true, OpRepublish, StatusPublished, false},
		{"republish published", StatusPublished, true, OpRepublish, StatusPublished, true},
		{"activate published", StatusPublished, true, OpActivate, StatusActive, false},
		{"activate unpublished", StatusUnpublished, true, OpActivate, StatusActive, false},
		{"activate inactive", StatusInactive, true, OpActivate, StatusActive, false},
		{"activate active", StatusActive, true, OpActivate, StatusActive, false},
		{"activate draft", StatusDraft, false, OpActivate, StatusDraft, true},
		{"activate never published", StatusInactive, false, OpActivate, StatusInactive, true},
		{"deactivate active", StatusActive, true, OpDeactivate, StatusInactive, false},
		{"deactivate inactive", StatusInactive, true, OpDeactivate, StatusInactive, false},
		{"deactivate published", StatusPublished, true, OpDeactivate, StatusPublished, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Holon{Status: tt.status}
			if tt.published {
				h.PublishedOn = &published
			}

			got, err := NextStatus(h, tt.op)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidStateTransition) {
					t.Fatalf("expected invalid transition got %v", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %s got %s", tt.want, got)
			}
		})
	}
}
