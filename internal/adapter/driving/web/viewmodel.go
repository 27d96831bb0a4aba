package web

import (
	"encoding/base64"
	"fmt"
	"time"

	httphandler "github.com/ericfisherdev/gatecheck/internal/adapter/driving/http"
	vm "github.com/ericfisherdev/gatecheck/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/gatecheck/internal/domain/model"
)

const displayTimeLayout = "2006-01-02 15:04:05"

func displayTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Local().Format(displayTimeLayout)
}

// toOutcomeViewModel converts a check-in outcome to its banner.
func toOutcomeViewModel(out model.CheckInOutcome) *vm.OutcomeViewModel {
	v := &vm.OutcomeViewModel{
		Success:  out.Status == model.CheckInSuccess,
		Status:   string(out.Status),
		Message:  out.Message,
		ScanTime: displayTime(out.ScanTime),
	}
	if out.Attendee != nil {
		v.Name = out.Attendee.Name
		v.TicketID = out.Attendee.TicketID
	}
	return v
}

func toAttendeeRowViewModel(a model.Attendee) vm.AttendeeRowViewModel {
	return vm.AttendeeRowViewModel{
		ID:       a.ID,
		Name:     a.Name,
		TicketID: a.TicketID,
		Email:    a.Email,
		Used:     a.Used,
		ScanTime: displayTime(a.ScanTime),
		QRPath:   fmt.Sprintf("/api/v1/admin/attendees/%d/qr.png", a.ID),
		PhotoURL: photoURL(a),
	}
}

func photoURL(a model.Attendee) string {
	if !a.HasPhoto {
		return ""
	}
	return httphandler.PhotoPath(a.ID)
}

func photoDataURI(p *model.Photo) string {
	return "data:" + p.ContentType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

func toStatsViewModel(s model.Stats) vm.StatsViewModel {
	return vm.StatsViewModel{Total: s.Total, Used: s.Used, Pending: s.Pending}
}

func toImportSummaryViewModel(res model.ImportResult) *vm.ImportSummaryViewModel {
	rejected := make([]vm.RejectedRowViewModel, 0, len(res.Rejected))
	for _, r := range res.Rejected {
		// Header is spreadsheet row 1, so data row i sits on row i+2.
		rejected = append(rejected, vm.RejectedRowViewModel{Row: r.Index + 2, Reason: r.Reason})
	}
	return &vm.ImportSummaryViewModel{
		Imported: res.Imported,
		Rejected: rejected,
		Aborted:  res.Aborted,
	}
}

func toScanEventViewModel(e model.ScanEvent) vm.ScanEventViewModel {
	return vm.ScanEventViewModel{
		When:   displayTime(&e.OccurredAt),
		Source: string(e.Source),
		Status: string(e.Status),
		Detail: e.Detail,
	}
}
