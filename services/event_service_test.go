package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/Dosada05/event-teams/models"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newEventFixture() (*memStore, *eventService) {
	store := newMemStore()
	store.addUser(&models.User{ID: 1, Email: "admin@corp.test", DisplayName: "Admin", IsAdmin: true})
	store.addUser(&models.User{ID: 2, Email: "member@corp.test", DisplayName: "Member"})
	store.addEvent(&models.Event{
		ID:          9,
		Name:        "quiz",
		IsAltEvent:  true,
		StartTime:   baseTime.Add(24 * time.Hour),
		EndTime:     baseTime.Add(96 * time.Hour),
		Deadline:    baseTime.Add(48 * time.Hour),
		OrganizerID: 1,
	})

	svc := NewEventService(
		store.eventRepo(), store,
		NewStaticVocabulary([]string{"hackathon", "quiz"}),
		NopNotifier{}, testLogger(),
	).(*eventService)
	svc.now = func() time.Time { return baseTime }
	return store, svc
}

func validTeamEvent() *models.Event {
	return &models.Event{
		Name:               "hackathon",
		IsTeamEvent:        true,
		StartTime:          baseTime.Add(24 * time.Hour),
		EndTime:            baseTime.Add(72 * time.Hour),
		Deadline:           baseTime.Add(48 * time.Hour),
		MinTeamMemberCount: 2,
		MaxTeamMemberCount: 4,
		OrganizerID:        1,
		AltEventID:         intPtr(9),
	}
}

func TestCreateEventHappyPath(t *testing.T) {
	is := is.New(t)
	_, svc := newEventFixture()

	created, err := svc.CreateEvent(context.Background(), validTeamEvent())
	is.NoErr(err)
	is.True(created.ID > 0)

	got, err := svc.GetEventByID(context.Background(), created.ID)
	is.NoErr(err)
	is.Equal(got.Name, "hackathon")
}

func TestCreateEventTimeOrdering(t *testing.T) {
	is := is.New(t)
	_, svc := newEventFixture()

	event := validTeamEvent()
	event.StartTime = baseTime.Add(-time.Hour)
	_, err := svc.CreateEvent(context.Background(), event)
	is.True(errors.Is(err, ErrEventStartInPast))

	event = validTeamEvent()
	event.EndTime = event.StartTime.Add(-time.Hour)
	_, err = svc.CreateEvent(context.Background(), event)
	is.True(errors.Is(err, ErrEventEndBeforeStart))

	event = validTeamEvent()
	event.Deadline = event.StartTime.Add(-time.Minute)
	_, err = svc.CreateEvent(context.Background(), event)
	is.True(errors.Is(err, ErrEventDeadlineOutOfRange))

	event = validTeamEvent()
	event.Deadline = event.EndTime.Add(time.Minute)
	_, err = svc.CreateEvent(context.Background(), event)
	is.True(errors.Is(err, ErrEventDeadlineOutOfRange))
}

func TestCreateEventNameMustBeInVocabulary(t *testing.T) {
	is := is.New(t)
	_, svc := newEventFixture()

	event := validTeamEvent()
	event.Name = "marathon"
	_, err := svc.CreateEvent(context.Background(), event)
	is.True(errors.Is(err, ErrEventNameInvalid))

	event = validTeamEvent()
	event.Name = ""
	_, err = svc.CreateEvent(context.Background(), event)
	is.True(errors.Is(err, ErrEventNameInvalid))
}

func TestCreateEventTeamSizeBounds(t *testing.T) {
	is := is.New(t)
	_, svc := newEventFixture()

	event := validTeamEvent()
	event.MinTeamMemberCount = 1
	_, err := svc.CreateEvent(context.Background(), event)
	is.True(errors.Is(err, ErrEventTeamSizeInvalid))

	event = validTeamEvent()
	event.MaxTeamMemberCount = 1
	_, err = svc.CreateEvent(context.Background(), event)
	is.True(errors.Is(err, ErrEventTeamSizeInvalid))

	event = validTeamEvent()
	event.MinTeamMemberCount = 4
	event.MaxTeamMemberCount = 3
	_, err = svc.CreateEvent(context.Background(), event)
	is.True(errors.Is(err, ErrEventTeamSizeInvalid))
}

func TestCreateEventOrganizerChecks(t *testing.T) {
	is := is.New(t)
	_, svc := newEventFixture()

	event := validTeamEvent()
	event.OrganizerID = 99
	_, err := svc.CreateEvent(context.Background(), event)
	is.True(errors.Is(err, ErrUserNotFound))

	event = validTeamEvent()
	event.OrganizerID = 2
	_, err = svc.CreateEvent(context.Background(), event)
	is.True(errors.Is(err, ErrOrganizerNotAllowed))
}

func TestCreateEventAlternateValidation(t *testing.T) {
	is := is.New(t)
	_, svc := newEventFixture()
	ctx := context.Background()

	// Командное событие без запасного не создаётся.
	event := validTeamEvent()
	event.AltEventID = nil
	_, err := svc.CreateEvent(ctx, event)
	is.True(errors.Is(err, ErrEventAltRequired))

	event = validTeamEvent()
	event.AltEventID = intPtr(42)
	_, err = svc.CreateEvent(ctx, event)
	is.True(errors.Is(err, ErrEventAltNotFound))

	// Запасным может быть только некомандное событие.
	teamAlt, err := svc.CreateEvent(ctx, validTeamEvent())
	is.NoErr(err)
	event = validTeamEvent()
	event.AltEventID = intPtr(teamAlt.ID)
	_, err = svc.CreateEvent(ctx, event)
	is.True(errors.Is(err, ErrEventAltIsTeamEvent))

	alt := &models.Event{
		Name:        "quiz",
		IsAltEvent:  true,
		StartTime:   baseTime.Add(24 * time.Hour),
		EndTime:     baseTime.Add(48 * time.Hour),
		Deadline:    baseTime.Add(36 * time.Hour),
		OrganizerID: 1,
	}
	createdAlt, err := svc.CreateEvent(ctx, alt)
	is.NoErr(err)

	// Командное событие заканчивается позже запасного.
	event = validTeamEvent()
	event.AltEventID = intPtr(createdAlt.ID)
	_, err = svc.CreateEvent(ctx, event)
	is.True(errors.Is(err, ErrEventAltEndsTooEarly))

	event = validTeamEvent()
	event.EndTime = createdAlt.EndTime
	event.Deadline = event.StartTime.Add(12 * time.Hour)
	event.AltEventID = intPtr(createdAlt.ID)
	created, err := svc.CreateEvent(ctx, event)
	is.NoErr(err)
	is.Equal(*created.AltEventID, createdAlt.ID)
}

func TestCreateEventNormalizesNonTeamFields(t *testing.T) {
	is := is.New(t)
	_, svc := newEventFixture()

	event := validTeamEvent()
	event.IsTeamEvent = false
	event.MinTeamMemberCount = 3
	event.MaxTeamMemberCount = 5

	created, err := svc.CreateEvent(context.Background(), event)
	is.NoErr(err)
	is.Equal(created.MinTeamMemberCount, 0)
	is.Equal(created.MaxTeamMemberCount, 0)
	is.Equal(created.AltEventID, (*int)(nil))
}

func TestCreateEventAltFlagForcesNonTeam(t *testing.T) {
	is := is.New(t)
	_, svc := newEventFixture()

	// Запасной флаг перекрывает командный: событие сохраняется некомандным.
	event := validTeamEvent()
	event.IsAltEvent = true

	created, err := svc.CreateEvent(context.Background(), event)
	is.NoErr(err)
	is.True(!created.IsTeamEvent)
	is.Equal(created.MinTeamMemberCount, 0)
	is.Equal(created.MaxTeamMemberCount, 0)
	is.Equal(created.AltEventID, (*int)(nil))
}

func TestListEventsByNameRejectsUnknownName(t *testing.T) {
	is := is.New(t)
	_, svc := newEventFixture()

	_, err := svc.ListEventsByName(context.Background(), "marathon")
	is.True(errors.Is(err, ErrEventNameInvalid))
}

func TestDeleteExpiredEvents(t *testing.T) {
	is := is.New(t)
	store, svc := newEventFixture()
	ctx := context.Background()

	live, err := svc.CreateEvent(ctx, validTeamEvent())
	is.NoErr(err)
	expired, err := svc.CreateEvent(ctx, validTeamEvent())
	is.NoErr(err)

	// Одно событие уже закончилось к моменту чистки, второе ещё идёт.
	expired.EndTime = baseTime.Add(time.Hour)
	svc.now = func() time.Time { return baseTime.Add(2 * time.Hour) }

	deleted, err := svc.DeleteExpiredEvents(ctx)
	is.NoErr(err)
	is.Equal(deleted, 1)

	_, ok := store.events[expired.ID]
	is.True(!ok)
	_, ok = store.events[live.ID]
	is.True(ok)
}
