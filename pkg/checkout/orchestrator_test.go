package checkout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantdigital/expressbuild/pkg/models"
)

func newTestOrchestrator() (*Orchestrator, *Wizard, *ConsultationForm) {
	w, _, _ := newTestWizard()
	form := &ConsultationForm{}
	return NewOrchestrator(w, form), w, form
}

func TestOrchestrator_StartsClosed(t *testing.T) {
	o, _, _ := newTestOrchestrator()
	assert.Equal(t, ModalClosed, o.Visible())

	assert.ErrorIs(t, o.ChooseExpress(), ErrInvalidTransition)
	assert.ErrorIs(t, o.ChooseConsultation(), ErrInvalidTransition)

	require.NoError(t, o.StartProject())
	assert.Equal(t, ModalPathChoice, o.Visible())
	assert.ErrorIs(t, o.StartProject(), ErrInvalidTransition)
}

func TestOrchestrator_ExpressOpensFreshWizard(t *testing.T) {
	o, w, _ := newTestOrchestrator()

	require.NoError(t, o.StartProject())
	require.NoError(t, o.ChooseExpress())
	assert.Equal(t, ModalExpress, o.Visible())
	assert.Equal(t, StateScopeCheck, w.State())

	assert.ErrorIs(t, o.ChooseConsultation(), ErrInvalidTransition)
	assert.Equal(t, ModalExpress, o.Visible())
}

func TestOrchestrator_CustomFeaturesRedirectsToConsultation(t *testing.T) {
	o, w, form := newTestOrchestrator()
	form.Fill("stale", "stale@example.com", "", "", "left over")

	require.NoError(t, o.StartProject())
	require.NoError(t, o.ChooseExpress())
	require.NoError(t, w.RequestCustomFeatures())

	assert.Equal(t, ModalConsultation, o.Visible())
	assert.Equal(t, StateScopeCheck, w.State())
	assert.True(t, form.Empty())
}

func TestOrchestrator_CloseResetsWizard(t *testing.T) {
	o, w, _ := newTestOrchestrator()

	require.NoError(t, o.StartProject())
	require.NoError(t, o.ChooseExpress())
	walkToPayment(t, w, true)

	o.Close()
	assert.Equal(t, ModalClosed, o.Visible())
	assert.Equal(t, StateScopeCheck, w.State())
	assert.Equal(t, models.BusinessInfo{}, w.BusinessInfo())
	assert.Equal(t, Selection{}, w.Selection())
}

func TestOrchestrator_CloseResetsConsultation(t *testing.T) {
	o, _, form := newTestOrchestrator()

	require.NoError(t, o.StartProject())
	require.NoError(t, o.ChooseConsultation())
	form.Fill("Jo", "jo@example.com", "0412 345 678", "Smith Plumbing", "Need bookings")

	o.Close()
	assert.Equal(t, ModalClosed, o.Visible())
	assert.True(t, form.Empty())
}

func TestOrchestrator_CloseWhenClosedIsNoop(t *testing.T) {
	o, _, _ := newTestOrchestrator()
	o.Close()
	assert.Equal(t, ModalClosed, o.Visible())
}

func TestOrchestrator_DoneClosesModal(t *testing.T) {
	o, w, _ := newTestOrchestrator()

	require.NoError(t, o.StartProject())
	require.NoError(t, o.ChooseExpress())
	walkToPayment(t, w, false)
	require.NoError(t, w.SubmitPayment(context.Background(), testCard))
	require.NoError(t, w.Done())

	assert.Equal(t, ModalClosed, o.Visible())
	assert.Equal(t, StateScopeCheck, w.State())

	require.NoError(t, o.StartProject())
	require.NoError(t, o.ChooseExpress())
	assert.Equal(t, models.BusinessInfo{}, w.BusinessInfo())
}

func TestOrchestrator_PathChoiceClose(t *testing.T) {
	o, w, _ := newTestOrchestrator()

	require.NoError(t, o.StartProject())
	o.Close()
	assert.Equal(t, ModalClosed, o.Visible())
	assert.Equal(t, StateScopeCheck, w.State())
}
