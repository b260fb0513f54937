// Package newbill runs the two-phase submission of a new bill: the proof
// file is uploaded as soon as it is picked, then the completed record is
// written when the form is submitted.
package newbill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"

	"billed/internal/models"
	"billed/internal/store"
)

// RejectMessage is shown when the picked file is not an accepted image.
const RejectMessage = "Ce format de fichier n'est pas accepté"

var (
	ErrUnsupportedFile  = errors.New("unsupported file type")
	ErrUploadFailed     = errors.New("proof upload failed")
	ErrUploadPending    = errors.New("proof upload still in progress")
	ErrUploadSuperseded = errors.New("proof upload superseded by a newer file")
	ErrSubmitInProgress = errors.New("bill submission already in progress")
	ErrAlreadySubmitted = errors.New("bill already submitted")
	ErrSubmitFailed     = errors.New("bill submission failed")
)

var acceptedTypes = map[string]bool{
	"image/jpg":  true,
	"image/jpeg": true,
	"image/png":  true,
}

// Accepted reports whether contentType is an accepted proof type.
func Accepted(contentType string) bool {
	return acceptedTypes[strings.ToLower(strings.TrimSpace(contentType))]
}

// State is the position of a submission in its lifecycle.
type State int

const (
	Idle State = iota
	FileValidating
	FileUploading
	FileUploaded
	FormSubmitted
	Persisted
)

var stateNames = [...]string{"Idle", "FileValidating", "FileUploading", "FileUploaded", "FormSubmitted", "Persisted"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
	return stateNames[s]
}

// File is the proof picked in the file input.
type File struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// Upload is the stored proof, carried into the submit step.
type Upload struct {
	FileURL  string
	FileName string
	FileID   string
	Key      string
}

// Done reports whether the upload holds a stored proof.
func (u Upload) Done() bool {
	return u.Key != "" || u.FileURL != ""
}

// Form holds the raw values of the new bill form.
type Form struct {
	Type       string
	Name       string
	Amount     string
	Date       string
	VAT        string
	Pct        string
	Commentary string
}

// Controller creates submission flows against the store.
type Controller struct {
	store  store.Client
	logger *log.Logger
}

// New creates a Controller. A nil logger means log.Default().
func New(client store.Client, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{store: client, logger: logger}
}

// Start begins a submission for the logged in user.
func (c *Controller) Start(s *models.Session) *Flow {
	return &Flow{c: c, session: s, state: Idle}
}

// Resume continues a submission whose proof was uploaded by an earlier
// request.
func (c *Controller) Resume(s *models.Session, up Upload) *Flow {
	f := c.Start(s)
	if up.Done() {
		f.state = FileUploaded
		f.upload = up
	}
	return f
}

// Flow is one in-progress submission.
type Flow struct {
	c       *Controller
	session *models.Session

	mu         sync.Mutex
	state      State
	upload     Upload
	generation int
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Upload returns the last completed upload.
func (f *Flow) Upload() Upload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upload
}

// FileChange validates and uploads the picked proof. An unsupported type
// returns ErrUnsupportedFile without calling the store. Picking a new file
// while an upload is running supersedes it: the older result is discarded.
func (f *Flow) FileChange(ctx context.Context, file File) (Upload, error) {
	f.mu.Lock()
	if f.state == FormSubmitted || f.state == Persisted {
		f.mu.Unlock()
		return Upload{}, ErrAlreadySubmitted
	}
	f.state = FileValidating
	if !Accepted(file.ContentType) {
		f.state = Idle
		f.upload = Upload{}
		f.mu.Unlock()
		return Upload{}, ErrUnsupportedFile
	}
	f.generation++
	gen := f.generation
	f.state = FileUploading
	f.upload = Upload{}
	f.mu.Unlock()

	result, err := f.c.store.Bills().Create(ctx, store.CreateRequest{
		File:        file.Content,
		FileName:    baseName(file.Name),
		ContentType: file.ContentType,
		Email:       f.session.Email,
		Headers:     store.Headers{NoContentType: true},
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation {
		f.c.logger.Printf("Discarding stale upload of %s", file.Name)
		return Upload{}, ErrUploadSuperseded
	}
	if err != nil {
		f.c.logger.Printf("Create bill error: %v", err)
		f.state = Idle
		return Upload{}, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	f.upload = Upload{
		FileURL:  result.FileURL,
		FileName: baseName(file.Name),
		FileID:   result.FileID,
		Key:      result.Key,
	}
	f.state = FileUploaded
	return f.upload, nil
}

// Submit writes the completed bill. It refuses to run while a proof upload is
// in flight or another submit is pending. On failure the error is logged and
// the flow returns to its previous state, leaving the form usable.
func (f *Flow) Submit(ctx context.Context, form Form) (*models.Bill, error) {
	f.mu.Lock()
	switch f.state {
	case FileValidating, FileUploading:
		f.mu.Unlock()
		return nil, ErrUploadPending
	case FormSubmitted:
		f.mu.Unlock()
		return nil, ErrSubmitInProgress
	case Persisted:
		f.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	prev := f.state
	up := f.upload
	f.state = FormSubmitted
	f.mu.Unlock()

	bill := BuildBill(f.session, form, up)
	data, err := json.Marshal(bill)
	if err != nil {
		f.restore(prev)
		return nil, err
	}

	saved, err := f.c.store.Bills().Update(ctx, store.UpdateRequest{Selector: up.Key, Data: string(data)})
	if err != nil {
		f.c.logger.Printf("Update bill error: %v", err)
		f.restore(prev)
		return nil, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	f.mu.Lock()
	f.state = Persisted
	f.mu.Unlock()
	return saved, nil
}

func (f *Flow) restore(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// BuildBill assembles the record sent on submit. Amount and pct are parsed as
// integers; a blank, zero or unparseable pct becomes models.DefaultPct. File
// fields stay null until a proof was uploaded.
func BuildBill(s *models.Session, form Form, up Upload) models.Bill {
	amount, _ := parseLeadingInt(form.Amount)
	pct, err := parseLeadingInt(form.Pct)
	if err != nil || pct == 0 {
		pct = models.DefaultPct
	}

	b := models.Bill{
		Email:      s.Email,
		Type:       models.ExpenseCategory(form.Type),
		Name:       form.Name,
		Amount:     amount,
		Date:       form.Date,
		VAT:        form.VAT,
		Pct:        pct,
		Commentary: form.Commentary,
		Status:     models.StatusPending,
	}
	if up.Done() {
		url, name := up.FileURL, up.FileName
		b.FileURL = &url
		b.FileName = &name
	}
	return b
}

// parseLeadingInt reads the integer prefix of s, so "12.50" gives 12.
func parseLeadingInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return strconv.Atoi(s[:end])
}

// baseName strips any directory, including the browser's C:\fakepath\ prefix.
func baseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		return name[i+1:]
	}
	return name
}
