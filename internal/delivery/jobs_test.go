package delivery

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"DocRelay/internal/models"
)

func TestDecode(t *testing.T) {
	bulk, err := NewBulkForwardJob("b1", models.BulkForwardPayload{
		RecipientEmail: "client@example.com",
		ProjectID:      "p1",
		DeliveryMethod: models.MethodEmailCombined,
		Selections:     []models.CandidateSelection{{CandidateID: "c1", SendType: models.SendMerged}},
	})
	if err != nil {
		t.Fatalf("NewBulkForwardJob: %v", err)
	}
	bulk.Attempt = 2

	tests := []struct {
		name string
		job  models.DeliveryJob
		want Job
	}{
		{
			name: "single forward",
			job:  models.DeliveryJob{ID: "j1", Kind: models.KindSingleForward, Payload: []byte(`{"historyId":"h1"}`), Attempt: 1},
			want: SingleForward{JobID: "j1", Attempt: 1, HistoryID: "h1"},
		},
		{
			name: "single forward without history id",
			job:  models.DeliveryJob{ID: "j2", Kind: models.KindSingleForward, Payload: []byte(`{}`)},
			want: Unrecognized{JobID: "j2", Kind: models.KindSingleForward, Reason: "missing historyId"},
		},
		{
			name: "legacy job without kind",
			job:  models.DeliveryJob{ID: "j3", Payload: []byte(`{"historyId":"h9"}`)},
			want: SingleForward{JobID: "j3", HistoryID: "h9", Legacy: true},
		},
		{
			name: "unknown kind without history id",
			job:  models.DeliveryJob{ID: "j4", Kind: "reindex", Payload: []byte(`{"x":1}`)},
			want: Unrecognized{JobID: "j4", Kind: "reindex", Reason: "unknown job kind"},
		},
		{
			name: "unknown kind with no payload",
			job:  models.DeliveryJob{ID: "j5", Kind: "reindex"},
			want: Unrecognized{JobID: "j5", Kind: "reindex", Reason: "unknown job kind"},
		},
		{
			name: "bulk forward",
			job:  bulk,
			want: BulkForward{JobID: "b1", Attempt: 2, Payload: models.BulkForwardPayload{
				RecipientEmail: "client@example.com",
				ProjectID:      "p1",
				DeliveryMethod: models.MethodEmailCombined,
				Selections:     []models.CandidateSelection{{CandidateID: "c1", SendType: models.SendMerged}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Decode(tt.job)); diff != "" {
				t.Fatalf("Decode mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidateBulk(t *testing.T) {
	valid := models.BulkForwardPayload{
		RecipientEmail: "client@example.com",
		ProjectID:      "p1",
		DeliveryMethod: models.MethodGoogleDrive,
	}
	if err := ValidateBulk(valid); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}

	cases := map[string]func(p *models.BulkForwardPayload){
		"no recipient": func(p *models.BulkForwardPayload) { p.RecipientEmail = " " },
		"no project":   func(p *models.BulkForwardPayload) { p.ProjectID = "" },
		"bad method":   func(p *models.BulkForwardPayload) { p.DeliveryMethod = "fax" },
		"bad send type": func(p *models.BulkForwardPayload) {
			p.Selections = []models.CandidateSelection{{CandidateID: "c1", SendType: "zip"}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := valid
			mutate(&p)
			if err := ValidateBulk(p); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
