package checkout

import "sync"

// ModalState is the single top-level modal shown on the page
type ModalState string

const (
	ModalClosed       ModalState = "closed"
	ModalPathChoice   ModalState = "path-choice"
	ModalExpress      ModalState = "express"
	ModalConsultation ModalState = "consultation"
)

// Resetter is a nested form cleared when its modal closes
type Resetter interface {
	Reset()
}

// ConsultationForm holds the booking form fields. Submitting it is handled elsewhere.
type ConsultationForm struct {
	mu sync.Mutex

	Name         string
	Email        string
	Phone        string
	BusinessName string
	Message      string
}

// Fill replaces the form fields.
func (f *ConsultationForm) Fill(name, email, phone, businessName, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Name, f.Email, f.Phone, f.BusinessName, f.Message = name, email, phone, businessName, message
}

// Empty reports whether every field is blank.
func (f *ConsultationForm) Empty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Name == "" && f.Email == "" && f.Phone == "" && f.BusinessName == "" && f.Message == ""
}

// Reset clears the form.
func (f *ConsultationForm) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Name, f.Email, f.Phone, f.BusinessName, f.Message = "", "", "", "", ""
}

// Orchestrator keeps at most one modal visible and resets the nested machine of
// any modal it closes.
type Orchestrator struct {
	mu sync.Mutex

	state        ModalState
	wizard       *Wizard
	consultation Resetter
}

// NewOrchestrator creates a closed orchestrator and takes over the wizard's exit handler.
func NewOrchestrator(wizard *Wizard, consultation Resetter) *Orchestrator {
	o := &Orchestrator{
		state:        ModalClosed,
		wizard:       wizard,
		consultation: consultation,
	}
	wizard.SetExitHandler(o.wizardExited)
	return o
}

// Visible returns the modal currently shown
func (o *Orchestrator) Visible() ModalState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// StartProject opens the path choice.
func (o *Orchestrator) StartProject() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != ModalClosed {
		return ErrInvalidTransition
	}
	o.state = ModalPathChoice
	return nil
}

// ChooseExpress opens a fresh checkout wizard.
func (o *Orchestrator) ChooseExpress() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != ModalPathChoice {
		return ErrInvalidTransition
	}
	o.wizard.Close()
	o.state = ModalExpress
	return nil
}

// ChooseConsultation opens an empty consultation form.
func (o *Orchestrator) ChooseConsultation() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != ModalPathChoice {
		return ErrInvalidTransition
	}
	o.openConsultation()
	return nil
}

// Close hides the visible modal and resets its nested state. Closing when
// nothing is shown is a no-op.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state {
	case ModalExpress:
		o.wizard.Close()
	case ModalConsultation:
		if o.consultation != nil {
			o.consultation.Reset()
		}
	}
	o.state = ModalClosed
}

func (o *Orchestrator) wizardExited(reason Exit) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != ModalExpress {
		return
	}

	switch reason {
	case ExitCustomFeatures:
		o.openConsultation()
	case ExitCompleted:
		o.state = ModalClosed
	}
}

func (o *Orchestrator) openConsultation() {
	if o.consultation != nil {
		o.consultation.Reset()
	}
	o.state = ModalConsultation
}
