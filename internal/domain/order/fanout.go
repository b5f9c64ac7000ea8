package order

import (
	"fmt"
	"strings"

	"github.com/wardflow/wardflow/internal/domain/bed"
	"github.com/wardflow/wardflow/internal/domain/nursingtask"
	"github.com/wardflow/wardflow/internal/platform/apperr"
)

// validatePayload checks the kind-specific payload keys an order must carry.
func validatePayload(kind string, payload map[string]interface{}) error {
	required := map[string][]string{
		KindMedication: {"dose", "route", "frequency"},
		KindLab:        {"test_code"},
		KindProcedure:  {"procedure"},
	}
	var missing []string
	for _, key := range required[kind] {
		v, ok := payload[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return apperr.Invalid(fmt.Sprintf("%s order payload missing %s", strings.ToLower(kind), strings.Join(missing, ", ")))
	}
	return nil
}

// fanout derives the order's nursing tasks from its kind template. Each task
// snapshots the bed, room and department of the moment so later bed moves do
// not rewrite work already queued.
func fanout(o *Order, asn *bed.Assignment, loc *bed.Location) []*nursingtask.Task {
	base := nursingtask.Task{
		OrderID:      o.ID,
		AdmissionID:  o.AdmissionID,
		PatientID:    o.PatientID,
		DepartmentID: loc.DepartmentID,
		RoomID:       loc.RoomID,
		BedID:        asn.BedID,
		Kind:         o.Kind,
		Status:       nursingtask.StatusPending,
	}

	switch o.Kind {
	case KindMedication:
		t := base
		t.Title = "Administer medication"
		details := fmt.Sprintf("dose: %v, route: %v, frequency: %v",
			o.Payload["dose"], o.Payload["route"], o.Payload["frequency"])
		t.Details = &details
		return []*nursingtask.Task{&t}
	case KindLab:
		t := base
		t.Title = "Collect specimen"
		details := fmt.Sprintf("test: %v", o.Payload["test_code"])
		t.Details = &details
		return []*nursingtask.Task{&t}
	case KindProcedure:
		t := base
		t.Title = "Prepare patient for procedure"
		details := fmt.Sprintf("procedure: %v", o.Payload["procedure"])
		t.Details = &details
		return []*nursingtask.Task{&t}
	}
	return nil
}
