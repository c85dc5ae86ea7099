package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicflow/attendance-engine/internal/config"
	"github.com/clinicflow/attendance-engine/internal/timer"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fakeRepo struct {
	patients      map[uuid.UUID]*Patient
	professionals map[uuid.UUID]*Professional
	appointments  map[uuid.UUID]*Appointment
	events        []EventLog

	failCreate bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		patients:      make(map[uuid.UUID]*Patient),
		professionals: make(map[uuid.UUID]*Professional),
		appointments:  make(map[uuid.UUID]*Appointment),
	}
}

func (r *fakeRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) GetProfessionalByID(_ context.Context, id uuid.UUID) (*Professional, error) {
	p, ok := r.professionals[id]
	if !ok {
		return nil, ErrProfessionalNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) ListArrivedByProfessional(_ context.Context, professionalID uuid.UUID) ([]Appointment, error) {
	var result []Appointment
	for _, a := range r.appointments {
		if a.ProfessionalID == professionalID && a.Status == StatusArrived {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (r *fakeRepo) FindOpenAppointmentForPatient(_ context.Context, patientID, professionalID uuid.UUID, dayStart, dayEnd time.Time) (*Appointment, error) {
	var best *Appointment
	for _, a := range r.appointments {
		if a.PatientID == nil || *a.PatientID != patientID {
			continue
		}
		if a.ProfessionalID != professionalID {
			continue
		}
		if a.Status != StatusScheduled && a.Status != StatusConfirmed {
			continue
		}
		if a.StartTime.Before(dayStart) || !a.StartTime.Before(dayEnd) {
			continue
		}
		if best == nil || a.StartTime.Before(best.StartTime) {
			cp := *a
			best = &cp
		}
	}
	if best == nil {
		return nil, ErrAppointmentNotFound
	}
	return best, nil
}

func (r *fakeRepo) ListArrivedOlderThan(_ context.Context, cutoff time.Time) ([]Appointment, error) {
	var result []Appointment
	for _, a := range r.appointments {
		if a.Status == StatusArrived && a.UpdatedAt.Before(cutoff) {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (r *fakeRepo) CreateAppointment(_ context.Context, appt Appointment) (*Appointment, error) {
	if r.failCreate {
		return nil, errors.New("insert refused")
	}
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	cp := appt
	r.appointments[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *fakeRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = a.UpdatedAt.Add(time.Millisecond)
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *fakeRepo) countArrived(professionalID uuid.UUID) int {
	n := 0
	for _, a := range r.appointments {
		if a.ProfessionalID == professionalID && a.Status == StatusArrived {
			n++
		}
	}
	return n
}

func (r *fakeRepo) eventsOfType(eventType string) []EventLog {
	var out []EventLog
	for _, ev := range r.events {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func testConfig() config.Config {
	return config.Config{
		ClinicTimezone: "UTC",
		SessionLength:  30 * time.Minute,
	}
}

func newTestService(repo *fakeRepo, clk *fakeClock) (*Service, timer.Store) {
	timers := timer.NewMemoryStore(clk)
	return NewService(repo, timers, clk, testConfig()), timers
}

func seedProfessional(repo *fakeRepo, clinicID uuid.UUID) uuid.UUID {
	id := uuid.New()
	repo.professionals[id] = &Professional{ID: id, ClinicID: clinicID, Name: "Dra. Souza"}
	return id
}

func seedPatient(repo *fakeRepo, clinicID uuid.UUID) uuid.UUID {
	id := uuid.New()
	repo.patients[id] = &Patient{ID: id, ClinicID: clinicID, Name: "Maria"}
	return id
}

func TestStartSessionCreatesAdHocAppointment(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	clk := &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc, timers := newTestService(repo, clk)

	clinic := uuid.New()
	prof := seedProfessional(repo, clinic)
	patient := seedPatient(repo, clinic)

	appt, err := svc.StartSession(ctx, patient, prof)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	if appt.Status != StatusArrived {
		t.Fatalf("expected arrived, got %s", appt.Status)
	}
	if appt.PatientID == nil || *appt.PatientID != patient {
		t.Fatalf("appointment not bound to patient")
	}
	if got := appt.EndTime.Sub(appt.StartTime); got != 30*time.Minute {
		t.Fatalf("expected 30m ad-hoc window, got %v", got)
	}

	active, err := timers.Active(ctx, patient)
	if err != nil || !active {
		t.Fatalf("expected active session timer, active=%v err=%v", active, err)
	}
}

func TestStartSessionResolvesExistingAppointment(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	clk := &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(repo, clk)

	clinic := uuid.New()
	prof := seedProfessional(repo, clinic)
	patient := seedPatient(repo, clinic)

	scheduled := Appointment{
		ID:             uuid.New(),
		ClinicID:       clinic,
		PatientID:      &patient,
		ProfessionalID: prof,
		StartTime:      clk.now.Add(time.Hour),
		EndTime:        clk.now.Add(90 * time.Minute),
		Status:         StatusConfirmed,
	}
	repo.appointments[scheduled.ID] = &scheduled

	appt, err := svc.StartSession(ctx, patient, prof)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	if appt.ID != scheduled.ID {
		t.Fatalf("expected existing appointment to be reused")
	}
	if appt.Status != StatusArrived {
		t.Fatalf("expected arrived, got %s", appt.Status)
	}
	if len(repo.appointments) != 1 {
		t.Fatalf("expected no extra appointment, have %d", len(repo.appointments))
	}
}

func TestStartSessionAutoCompletesStaleArrived(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	clk := &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(repo, clk)

	clinic := uuid.New()
	prof := seedProfessional(repo, clinic)
	p1 := seedPatient(repo, clinic)
	p2 := seedPatient(repo, clinic)

	// P1's session was never closed.
	if _, err := svc.StartSession(ctx, p1, prof); err != nil {
		t.Fatalf("first session: %v", err)
	}
	if _, err := svc.StartSession(ctx, p2, prof); err != nil {
		t.Fatalf("second session: %v", err)
	}

	if got := repo.countArrived(prof); got != 1 {
		t.Fatalf("invariant broken: %d arrived appointments for professional", got)
	}
	for _, a := range repo.appointments {
		if a.PatientID != nil && *a.PatientID == p1 && a.Status != StatusCompleted {
			t.Fatalf("stale session for p1 not completed, status=%s", a.Status)
		}
	}
}

func TestSessionActiveAtZeroElapsed(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	clk := &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(repo, clk)

	clinic := uuid.New()
	prof := seedProfessional(repo, clinic)
	patient := seedPatient(repo, clinic)

	if _, err := svc.StartSession(ctx, patient, prof); err != nil {
		t.Fatalf("start session: %v", err)
	}

	// The clock has not moved since start, so elapsed reads zero while the
	// session is very much active.
	elapsed, err := svc.Elapsed(ctx, patient)
	if err != nil {
		t.Fatalf("elapsed: %v", err)
	}
	if elapsed != 0 {
		t.Fatalf("expected zero elapsed, got %v", elapsed)
	}

	active, err := svc.SessionActive(ctx, patient)
	if err != nil {
		t.Fatalf("session active: %v", err)
	}
	if !active {
		t.Fatal("expected session to be active immediately after start")
	}
}

func TestStartSessionIgnoresOtherProfessionalsBooking(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	clk := &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(repo, clk)

	clinic := uuid.New()
	prof1 := seedProfessional(repo, clinic)
	prof2 := seedProfessional(repo, clinic)
	patient := seedPatient(repo, clinic)
	other := seedPatient(repo, clinic)

	// prof2 is mid-session with another patient.
	if _, err := svc.StartSession(ctx, other, prof2); err != nil {
		t.Fatalf("prof2 session: %v", err)
	}

	// The patient is booked with prof2 later today but is being attended
	// now by prof1.
	booked := Appointment{
		ID:             uuid.New(),
		ClinicID:       clinic,
		PatientID:      &patient,
		ProfessionalID: prof2,
		StartTime:      clk.now.Add(2 * time.Hour),
		EndTime:        clk.now.Add(150 * time.Minute),
		Status:         StatusScheduled,
	}
	repo.appointments[booked.ID] = &booked

	appt, err := svc.StartSession(ctx, patient, prof1)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	if appt.ID == booked.ID {
		t.Fatal("session reused an appointment on another professional's agenda")
	}
	if appt.ProfessionalID != prof1 {
		t.Fatalf("session appointment bound to wrong professional")
	}
	if got := repo.countArrived(prof2); got != 1 {
		t.Fatalf("invariant broken: %d arrived appointments for prof2", got)
	}
	if got := repo.countArrived(prof1); got != 1 {
		t.Fatalf("expected 1 arrived appointment for prof1, got %d", got)
	}
	if repo.appointments[booked.ID].Status != StatusScheduled {
		t.Fatalf("prof2's booking mutated, status=%s", repo.appointments[booked.ID].Status)
	}
}

func TestStartSessionIsIdempotentForSamePatient(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	clk := &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(repo, clk)

	clinic := uuid.New()
	prof := seedProfessional(repo, clinic)
	patient := seedPatient(repo, clinic)

	first, err := svc.StartSession(ctx, patient, prof)
	if err != nil {
		t.Fatalf("first session: %v", err)
	}

	// Client reload: same patient, same professional.
	second, err := svc.StartSession(ctx, patient, prof)
	if err != nil {
		t.Fatalf("second session: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("reload created a new appointment: %s vs %s", first.ID, second.ID)
	}
	if got := repo.countArrived(prof); got != 1 {
		t.Fatalf("expected exactly one arrived appointment, got %d", got)
	}
}

func TestStartSessionFailsWithoutClinic(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	clk := &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(repo, clk)

	prof := seedProfessional(repo, uuid.Nil)
	patient := seedPatient(repo, uuid.New())

	_, err := svc.StartSession(ctx, patient, prof)
	if !errors.Is(err, ErrClinicNotResolved) {
		t.Fatalf("expected ErrClinicNotResolved, got %v", err)
	}
	if len(repo.appointments) != 0 {
		t.Fatalf("configuration failure must not mutate, found %d appointments", len(repo.appointments))
	}
}

func TestConfirmIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	clk := &fakeClock{now: time.Now()}
	svc, _ := newTestService(repo, clk)

	patient := uuid.New()
	appt := Appointment{ID: uuid.New(), PatientID: &patient, ProfessionalID: uuid.New(), Status: StatusScheduled}
	repo.appointments[appt.ID] = &appt

	first, err := svc.Confirm(ctx, appt.ID)
	if err != nil || first.Status != StatusConfirmed {
		t.Fatalf("confirm: status=%v err=%v", first.Status, err)
	}

	second, err := svc.Confirm(ctx, appt.ID)
	if err != nil || second.Status != StatusConfirmed {
		t.Fatalf("repeat confirm: status=%v err=%v", second.Status, err)
	}
}

func TestCancelIsNoOpOnTerminal(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	clk := &fakeClock{now: time.Now()}
	svc, _ := newTestService(repo, clk)

	patient := uuid.New()
	appt := Appointment{ID: uuid.New(), PatientID: &patient, ProfessionalID: uuid.New(), Status: StatusCompleted}
	repo.appointments[appt.ID] = &appt

	got, err := svc.Cancel(ctx, appt.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("cancel of terminal appointment mutated status to %s", got.Status)
	}
}

func TestMarkNoShowRejectsArrived(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	clk := &fakeClock{now: time.Now()}
	svc, _ := newTestService(repo, clk)

	patient := uuid.New()
	appt := Appointment{ID: uuid.New(), PatientID: &patient, ProfessionalID: uuid.New(), Status: StatusArrived}
	repo.appointments[appt.ID] = &appt

	_, err := svc.MarkNoShow(ctx, appt.ID)
	if !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
	}
}

func TestReopenLogsOperator(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	clk := &fakeClock{now: time.Now()}
	svc, _ := newTestService(repo, clk)

	patient := uuid.New()
	operator := uuid.New()
	appt := Appointment{ID: uuid.New(), PatientID: &patient, ProfessionalID: uuid.New(), Status: StatusNoShow}
	repo.appointments[appt.ID] = &appt

	got, err := svc.Reopen(ctx, appt.ID, operator)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got.Status != StatusConfirmed {
		t.Fatalf("expected confirmed after reopen, got %s", got.Status)
	}
	if len(repo.eventsOfType(EventAppointmentReopened)) != 1 {
		t.Fatal("reopen must always be logged")
	}

	_, err = svc.Reopen(ctx, appt.ID, operator)
	if !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("reopen of confirmed appointment should fail, got %v", err)
	}
}

func TestBlockCreatesPatientlessWindow(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	clk := &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(repo, clk)

	clinic := uuid.New()
	prof := seedProfessional(repo, clinic)
	patient := seedPatient(repo, clinic)

	blocked, err := svc.Block(ctx, prof, clk.now.Add(time.Hour), clk.now.Add(2*time.Hour), "almoço")
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if blocked.PatientID != nil {
		t.Fatal("blocked window must be patient-less")
	}

	// Blocked windows never participate in the arrived sweep.
	if _, err := svc.StartSession(ctx, patient, prof); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if got := repo.appointments[blocked.ID].Status; got != StatusBlocked {
		t.Fatalf("blocked window disturbed by session start: %s", got)
	}
}

func TestCompleteStaleArrivals(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	clk := &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(repo, clk)

	patient := uuid.New()
	old := Appointment{
		ID:             uuid.New(),
		PatientID:      &patient,
		ProfessionalID: uuid.New(),
		Status:         StatusArrived,
		UpdatedAt:      clk.now.Add(-24 * time.Hour),
	}
	fresh := Appointment{
		ID:             uuid.New(),
		PatientID:      &patient,
		ProfessionalID: uuid.New(),
		Status:         StatusArrived,
		UpdatedAt:      clk.now.Add(-time.Hour),
	}
	repo.appointments[old.ID] = &old
	repo.appointments[fresh.ID] = &fresh

	closed, err := svc.CompleteStaleArrivals(ctx, 12*time.Hour)
	if err != nil {
		t.Fatalf("complete stale arrivals: %v", err)
	}
	if closed != 1 {
		t.Fatalf("expected 1 closed, got %d", closed)
	}
	if repo.appointments[old.ID].Status != StatusCompleted {
		t.Fatal("stale appointment not completed")
	}
	if repo.appointments[fresh.ID].Status != StatusArrived {
		t.Fatal("fresh appointment must stay arrived")
	}
}
