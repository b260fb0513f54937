package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"billed/internal/models"
	"billed/internal/newbill"
)

// maxProofSize bounds the multipart body of a proof upload.
const maxProofSize = 10 << 20

// FileRejectedEvent is the htmx event raised when a picked file is refused.
const FileRejectedEvent = "fileRejected"

// NewBillViewModel is the data passed to the new bill form template.
type NewBillViewModel struct {
	Categories []models.ExpenseCategory
}

// NewBillForm renders the form to create a new bill.
func (h *Handlers) NewBillForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "newbill.html", Page{
		Path:    NewBillPath,
		Session: GetSessionFromContext(r),
		Data:    NewBillViewModel{Categories: models.Categories},
	})
}

// UploadProof handles a change of the proof file input. The response is the
// hidden upload fields carried into the submit. A refused type raises
// FileRejectedEvent so the page alerts and clears the input; a failed upload
// is only logged.
func (h *Handlers) UploadProof(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxProofSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		log.Printf("UploadProof form error: %v", err)
		h.renderFragment(w, "upload.html", newbill.Upload{})
		return
	}
	defer file.Close()

	flow := h.newBill.Start(GetSessionFromContext(r))
	up, err := flow.FileChange(r.Context(), newbill.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     file,
	})
	if errors.Is(err, newbill.ErrUnsupportedFile) {
		trigger, _ := json.Marshal(map[string]string{FileRejectedEvent: newbill.RejectMessage})
		w.Header().Set("HX-Trigger", string(trigger))
	}
	h.renderFragment(w, "upload.html", up)
}

// SubmitBill handles the new bill form. On success the client is sent back to
// the bills list; on failure it stays on the form.
func (h *Handlers) SubmitBill(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		log.Printf("SubmitBill form error: %v", err)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	up := newbill.Upload{
		FileURL:  r.FormValue("fileUrl"),
		FileName: r.FormValue("fileName"),
		FileID:   r.FormValue("fileId"),
		Key:      r.FormValue("fileKey"),
	}
	form := newbill.Form{
		Type:       r.FormValue("expense-type"),
		Name:       r.FormValue("expense-name"),
		Amount:     r.FormValue("amount"),
		Date:       r.FormValue("datepicker"),
		VAT:        r.FormValue("vat"),
		Pct:        r.FormValue("pct"),
		Commentary: r.FormValue("commentary"),
	}

	flow := h.newBill.Resume(GetSessionFromContext(r), up)
	if _, err := flow.Submit(r.Context(), form); err != nil {
		// Already logged by the controller; the form stays as it is.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	Navigate(w, r, BillsPath)
}
