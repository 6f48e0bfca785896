package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/Dosada05/event-teams/models"
	"github.com/Dosada05/event-teams/repositories"
)

// memStore — общий стор для тестов сервисного слоя. Реализует все
// репозитории и TxManager; откат транзакции моделируется снимком
// состояния. failOn подменяет результат конкретного метода, чтобы
// проверять атомарность.
type memStore struct {
	users         map[int]*models.User
	events        map[int]*models.Event
	registrations map[regKey]*models.Registration
	teams         map[int][]int
	requests      map[int]*models.TeamRequest

	nextEventID   int
	nextTeamID    int
	nextRequestID int

	failOn map[string]error

	// beforeTx выполняется один раз перед началом транзакции и моделирует
	// конкурентную транзакцию, успевшую закоммититься первой.
	beforeTx func()
}

type regKey struct {
	userID  int
	eventID int
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[int]*models.User),
		events:        make(map[int]*models.Event),
		registrations: make(map[regKey]*models.Registration),
		teams:         make(map[int][]int),
		requests:      make(map[int]*models.TeamRequest),
		nextEventID:   1,
		nextTeamID:    1,
		nextRequestID: 1,
		failOn:        make(map[string]error),
	}
}

func (s *memStore) fail(method string) error {
	return s.failOn[method]
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- TxManager ---

func (s *memStore) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	if s.beforeTx != nil {
		hook := s.beforeTx
		s.beforeTx = nil
		hook()
	}
	snapshot := s.snapshot()
	if err := fn(nil); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

type memSnapshot struct {
	registrations map[regKey]*models.Registration
	teams         map[int][]int
	requests      map[int]*models.TeamRequest
	nextTeamID    int
	nextRequestID int
}

func (s *memStore) snapshot() *memSnapshot {
	snap := &memSnapshot{
		registrations: make(map[regKey]*models.Registration, len(s.registrations)),
		teams:         make(map[int][]int, len(s.teams)),
		requests:      make(map[int]*models.TeamRequest, len(s.requests)),
		nextTeamID:    s.nextTeamID,
		nextRequestID: s.nextRequestID,
	}
	for k, v := range s.registrations {
		clone := *v
		if v.TeamID != nil {
			clone.TeamID = intPtr(*v.TeamID)
		}
		snap.registrations[k] = &clone
	}
	for id, members := range s.teams {
		snap.teams[id] = append([]int(nil), members...)
	}
	for id, req := range s.requests {
		clone := *req
		if req.TeamID != nil {
			clone.TeamID = intPtr(*req.TeamID)
		}
		snap.requests[id] = &clone
	}
	return snap
}

func (s *memStore) restore(snap *memSnapshot) {
	s.registrations = snap.registrations
	s.teams = snap.teams
	s.requests = snap.requests
	s.nextTeamID = snap.nextTeamID
	s.nextRequestID = snap.nextRequestID
}

// --- UserRepository ---

func (s *memStore) addUser(u *models.User) *models.User {
	s.users[u.ID] = u
	return u
}

func (s *memStore) addEvent(e *models.Event) *models.Event {
	if e.ID == 0 {
		e.ID = s.nextEventID
		s.nextEventID++
	} else if e.ID >= s.nextEventID {
		s.nextEventID = e.ID + 1
	}
	s.events[e.ID] = e
	return e
}

func (s *memStore) addRegistration(userID, eventID int, teamID *int) {
	s.registrations[regKey{userID, eventID}] = &models.Registration{
		UserID:  userID,
		EventID: eventID,
		TeamID:  teamID,
	}
}

func (s *memStore) addTeam(id int, memberIDs ...int) int {
	if id >= s.nextTeamID {
		s.nextTeamID = id + 1
	}
	s.teams[id] = append([]int(nil), memberIDs...)
	return id
}

func (s *memStore) addTeamMember(teamID, userID int) {
	s.teams[teamID] = append(s.teams[teamID], userID)
}

func (s *memStore) GetByID(ctx context.Context, id int) (*models.User, error) {
	if err := s.fail("GetByID"); err != nil {
		return nil, err
	}
	user, ok := s.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return user, nil
}

func (s *memStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (s *memStore) CorporateAccounts(ctx context.Context, userID int) ([]int, error) {
	user, ok := s.users[userID]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	if user.CorporateAccountID == nil {
		return []int{}, nil
	}
	return []int{*user.CorporateAccountID}, nil
}

func (s *memStore) ListIDsByEventType(ctx context.Context, eventType string) ([]int, error) {
	ids := make([]int, 0)
	for id, user := range s.users {
		if user.EventType != nil && *user.EventType == eventType {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// --- EventRepository ---

type memEventRepo struct{ *memStore }

func (s *memStore) eventRepo() repositories.EventRepository { return &memEventRepo{s} }

func (r *memEventRepo) Create(ctx context.Context, event *models.Event) error {
	if _, ok := r.users[event.OrganizerID]; !ok {
		return repositories.ErrEventOrganizerInvalid
	}
	if event.AltEventID != nil {
		if _, ok := r.events[*event.AltEventID]; !ok {
			return repositories.ErrEventAltInvalid
		}
	}
	event.ID = r.nextEventID
	r.nextEventID++
	event.CreatedAt = time.Now()
	r.events[event.ID] = event
	return nil
}

func (r *memEventRepo) GetByID(ctx context.Context, id int) (*models.Event, error) {
	event, ok := r.events[id]
	if !ok {
		return nil, repositories.ErrEventNotFound
	}
	return event, nil
}

func (r *memEventRepo) List(ctx context.Context) ([]*models.Event, error) {
	events := make([]*models.Event, 0, len(r.events))
	for _, event := range r.events {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].StartTime.Before(events[j].StartTime) })
	return events, nil
}

func (r *memEventRepo) ListByName(ctx context.Context, name string) ([]*models.Event, error) {
	all, _ := r.List(ctx)
	events := make([]*models.Event, 0)
	for _, event := range all {
		if event.Name == name {
			events = append(events, event)
		}
	}
	return events, nil
}

func (r *memEventRepo) Delete(ctx context.Context, id int) error {
	if err := r.fail("EventDelete"); err != nil {
		return err
	}
	if _, ok := r.events[id]; !ok {
		return repositories.ErrEventNotFound
	}
	delete(r.events, id)
	for key := range r.registrations {
		if key.eventID == id {
			delete(r.registrations, key)
		}
	}
	for reqID, req := range r.requests {
		if req.EventID == id {
			delete(r.requests, reqID)
		}
	}
	return nil
}

func (r *memEventRepo) ListExpired(ctx context.Context, now time.Time) ([]*models.Event, error) {
	all, _ := r.List(ctx)
	expired := make([]*models.Event, 0)
	for _, event := range all {
		if !event.EndTime.After(now) {
			expired = append(expired, event)
		}
	}
	return expired, nil
}

// --- RegistrationRepository ---

type memRegistrationRepo struct{ *memStore }

func (s *memStore) registrationRepo() repositories.RegistrationRepository {
	return &memRegistrationRepo{s}
}

func (r *memRegistrationRepo) Create(ctx context.Context, reg *models.Registration) error {
	if err := r.fail("RegistrationCreate"); err != nil {
		return err
	}
	if _, ok := r.users[reg.UserID]; !ok {
		return repositories.ErrRegistrationUserInvalid
	}
	if _, ok := r.events[reg.EventID]; !ok {
		return repositories.ErrRegistrationEventInvalid
	}
	key := regKey{reg.UserID, reg.EventID}
	if _, ok := r.registrations[key]; ok {
		return repositories.ErrRegistrationConflict
	}
	reg.CreatedAt = time.Now()
	r.registrations[key] = reg
	return nil
}

func (r *memRegistrationRepo) Delete(ctx context.Context, userID, eventID int) (bool, error) {
	if err := r.fail("RegistrationDelete"); err != nil {
		return false, err
	}
	key := regKey{userID, eventID}
	if _, ok := r.registrations[key]; !ok {
		return false, nil
	}
	delete(r.registrations, key)
	return true, nil
}

func (r *memRegistrationRepo) TeamIDForUser(ctx context.Context, exec repositories.SQLExecutor, userID, eventID int) (*int, error) {
	reg, ok := r.registrations[regKey{userID, eventID}]
	if !ok {
		return nil, repositories.ErrRegistrationNotFound
	}
	return reg.TeamID, nil
}

func (r *memRegistrationRepo) UpdateTeamID(ctx context.Context, exec repositories.SQLExecutor, eventID int, teamID *int, userID int) error {
	if err := r.fail("UpdateTeamID"); err != nil {
		return err
	}
	reg, ok := r.registrations[regKey{userID, eventID}]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	reg.TeamID = teamID
	return nil
}

func (r *memRegistrationRepo) ListByEvent(ctx context.Context, eventID int) ([]*models.Registration, error) {
	regs := make([]*models.Registration, 0)
	for _, reg := range r.registrations {
		if reg.EventID == eventID {
			regs = append(regs, reg)
		}
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].UserID < regs[j].UserID })
	return regs, nil
}

func (r *memRegistrationRepo) ListTeamEventsByUser(ctx context.Context, userID int) ([]*models.EnrolledEvent, error) {
	return r.listEnrolled(userID, true), nil
}

func (r *memRegistrationRepo) ListSingleEventsByUser(ctx context.Context, userID int) ([]*models.EnrolledEvent, error) {
	return r.listEnrolled(userID, false), nil
}

func (r *memRegistrationRepo) listEnrolled(userID int, teamEvents bool) []*models.EnrolledEvent {
	enrolled := make([]*models.EnrolledEvent, 0)
	for _, reg := range r.registrations {
		if reg.UserID != userID {
			continue
		}
		event, ok := r.events[reg.EventID]
		if !ok || event.IsTeamEvent != teamEvents {
			continue
		}
		row := &models.EnrolledEvent{
			EventID:   event.ID,
			EventName: event.Name,
			StartTime: event.StartTime,
			Deadline:  event.Deadline,
		}
		if teamEvents {
			row.MinTeamMemberCount = event.MinTeamMemberCount
			row.TeamID = reg.TeamID
		}
		enrolled = append(enrolled, row)
	}
	sort.Slice(enrolled, func(i, j int) bool { return enrolled[i].StartTime.Before(enrolled[j].StartTime) })
	return enrolled
}

// --- TeamRepository ---

type memTeamRepo struct{ *memStore }

func (s *memStore) teamRepo() repositories.TeamRepository { return &memTeamRepo{s} }

func (r *memTeamRepo) Create(ctx context.Context, exec repositories.SQLExecutor, memberIDs ...int) (int, error) {
	if err := r.fail("TeamCreate"); err != nil {
		return 0, err
	}
	teamID := r.nextTeamID
	r.nextTeamID++
	r.teams[teamID] = append([]int(nil), memberIDs...)
	return teamID, nil
}

func (r *memTeamRepo) AddMember(ctx context.Context, exec repositories.SQLExecutor, teamID, userID int) error {
	if err := r.fail("AddMember"); err != nil {
		return err
	}
	members, ok := r.teams[teamID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	for _, id := range members {
		if id == userID {
			return repositories.ErrTeamMemberConflict
		}
	}
	r.teams[teamID] = append(members, userID)
	return nil
}

func (r *memTeamRepo) RemoveMember(ctx context.Context, exec repositories.SQLExecutor, teamID, userID int) error {
	if err := r.fail("RemoveMember"); err != nil {
		return err
	}
	members, ok := r.teams[teamID]
	if !ok {
		return repositories.ErrTeamMemberNotFound
	}
	for i, id := range members {
		if id == userID {
			r.teams[teamID] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
	return repositories.ErrTeamMemberNotFound
}

func (r *memTeamRepo) MemberCount(ctx context.Context, exec repositories.SQLExecutor, teamID int) (int, error) {
	return len(r.teams[teamID]), nil
}

func (r *memTeamRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, teamID int) error {
	if err := r.fail("TeamDelete"); err != nil {
		return err
	}
	if _, ok := r.teams[teamID]; !ok {
		return repositories.ErrTeamNotFound
	}
	r.dropTeam(teamID)
	return nil
}

func (r *memTeamRepo) DeleteBatch(ctx context.Context, teamIDs []int) error {
	for _, id := range teamIDs {
		r.dropTeam(id)
	}
	return nil
}

// dropTeam воспроизводит каскады схемы: состав удаляется, регистрации
// отвязываются, запросы команды исчезают.
func (s *memStore) dropTeam(teamID int) {
	delete(s.teams, teamID)
	for _, reg := range s.registrations {
		if reg.TeamID != nil && *reg.TeamID == teamID {
			reg.TeamID = nil
		}
	}
	for id, req := range s.requests {
		if req.TeamID != nil && *req.TeamID == teamID {
			delete(s.requests, id)
		}
	}
}

func (r *memTeamRepo) ListMembers(ctx context.Context, teamID int) ([]*models.TeamMember, error) {
	members := make([]*models.TeamMember, 0)
	for _, userID := range r.teams[teamID] {
		member := &models.TeamMember{TeamID: teamID, UserID: userID}
		if user, ok := r.users[userID]; ok {
			member.Email = user.Email
			member.DisplayName = user.DisplayName
		}
		members = append(members, member)
	}
	return members, nil
}

// --- TeamRequestRepository ---

type memRequestRepo struct{ *memStore }

func (s *memStore) requestRepo() repositories.TeamRequestRepository { return &memRequestRepo{s} }

func sameScope(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *memRequestRepo) Create(ctx context.Context, req *models.TeamRequest) error {
	if _, ok := r.users[req.RequesterID]; !ok {
		return repositories.ErrRequestUserInvalid
	}
	if _, ok := r.users[req.RequesteeID]; !ok {
		return repositories.ErrRequestUserInvalid
	}
	for _, existing := range r.requests {
		if existing.Status == models.RequestPending &&
			existing.RequesterID == req.RequesterID &&
			existing.RequesteeID == req.RequesteeID &&
			existing.EventID == req.EventID {
			return repositories.ErrRequestConflict
		}
	}
	req.ID = r.nextRequestID
	r.nextRequestID++
	req.CreatedAt = time.Now()
	r.requests[req.ID] = req
	return nil
}

func (r *memRequestRepo) FindByID(ctx context.Context, id int) (*models.TeamRequest, error) {
	req, ok := r.requests[id]
	if !ok {
		return nil, repositories.ErrRequestNotFound
	}
	// Реальный репозиторий возвращает отсоединённую строку; клонируем,
	// чтобы последующие мутации стора не просачивались в сервис.
	clone := *req
	if req.TeamID != nil {
		clone.TeamID = intPtr(*req.TeamID)
	}
	return &clone, nil
}

func (r *memRequestRepo) FindBySides(ctx context.Context, requesterID, requesteeID, eventID int, teamID *int, pendingOnly bool) (*models.TeamRequest, error) {
	for _, req := range r.requests {
		if req.RequesterID != requesterID || req.RequesteeID != requesteeID || req.EventID != eventID {
			continue
		}
		if !sameScope(req.TeamID, teamID) {
			continue
		}
		if pendingOnly && req.Status != models.RequestPending {
			continue
		}
		return req, nil
	}
	return nil, repositories.ErrRequestNotFound
}

func (r *memRequestRepo) MarkAccepted(ctx context.Context, exec repositories.SQLExecutor, id, teamID int) error {
	if err := r.fail("MarkAccepted"); err != nil {
		return err
	}
	req, ok := r.requests[id]
	if !ok {
		return repositories.ErrRequestNotFound
	}
	req.Status = models.RequestAccepted
	req.TeamID = intPtr(teamID)
	return nil
}

func (r *memRequestRepo) MarkDeclinedIfLive(ctx context.Context, id int, now time.Time) (bool, error) {
	req, ok := r.requests[id]
	if !ok || !req.ExpiresOn.After(now) {
		return false, nil
	}
	req.Status = models.RequestDeclined
	return true, nil
}

func (r *memRequestRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	if _, ok := r.requests[id]; !ok {
		return repositories.ErrRequestNotFound
	}
	delete(r.requests, id)
	return nil
}

func (r *memRequestRepo) ListRequesteeIDsByRequester(ctx context.Context, exec repositories.SQLExecutor, eventID, requesterID, excludeRequestID int) ([]int, error) {
	ids := make([]int, 0)
	for _, req := range r.requests {
		if req.TeamID == nil && req.EventID == eventID && req.RequesterID == requesterID && req.ID != excludeRequestID {
			ids = append(ids, req.RequesteeID)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (r *memRequestRepo) ListRequesteeIDsByTeam(ctx context.Context, exec repositories.SQLExecutor, eventID, teamID, excludeRequestID int) ([]int, error) {
	ids := make([]int, 0)
	for _, req := range r.requests {
		if req.TeamID != nil && *req.TeamID == teamID && req.EventID == eventID && req.ID != excludeRequestID {
			ids = append(ids, req.RequesteeID)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (r *memRequestRepo) ListPendingSoloByRequester(ctx context.Context, exec repositories.SQLExecutor, eventID, requesterID, excludeRequestID int) ([]*models.TeamRequest, error) {
	requests := make([]*models.TeamRequest, 0)
	for _, req := range r.requests {
		if req.TeamID == nil && req.EventID == eventID && req.RequesterID == requesterID &&
			req.ID != excludeRequestID && req.Status == models.RequestPending {
			requests = append(requests, req)
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].ID < requests[j].ID })
	return requests, nil
}

func (r *memRequestRepo) ReassignSoloToTeam(ctx context.Context, exec repositories.SQLExecutor, teamID, requesterID, eventID int) error {
	if err := r.fail("ReassignSoloToTeam"); err != nil {
		return err
	}
	for _, req := range r.requests {
		if req.TeamID == nil && req.RequesterID == requesterID && req.EventID == eventID &&
			req.Status == models.RequestPending {
			req.TeamID = intPtr(teamID)
		}
	}
	return nil
}

func (r *memRequestRepo) ListIncoming(ctx context.Context, requesteeID, eventID int) ([]*models.TeamRequestInfo, error) {
	infos := make([]*models.TeamRequestInfo, 0)
	for _, req := range r.requests {
		if req.RequesteeID == requesteeID && req.EventID == eventID {
			infos = append(infos, r.infoFor(req, req.RequesterID))
		}
	}
	sortInfos(infos)
	return infos, nil
}

func (r *memRequestRepo) ListOutgoingByRequester(ctx context.Context, requesterID, eventID int) ([]*models.TeamRequestInfo, error) {
	infos := make([]*models.TeamRequestInfo, 0)
	for _, req := range r.requests {
		if req.RequesterID == requesterID && req.EventID == eventID {
			infos = append(infos, r.infoFor(req, req.RequesteeID))
		}
	}
	sortInfos(infos)
	return infos, nil
}

func (r *memRequestRepo) ListOutgoingByTeam(ctx context.Context, teamID, eventID, excludeUserID int) ([]*models.TeamRequestInfo, error) {
	infos := make([]*models.TeamRequestInfo, 0)
	for _, req := range r.requests {
		if req.TeamID != nil && *req.TeamID == teamID && req.EventID == eventID && req.RequesteeID != excludeUserID {
			infos = append(infos, r.infoFor(req, req.RequesteeID))
		}
	}
	sortInfos(infos)
	return infos, nil
}

func (s *memStore) infoFor(req *models.TeamRequest, otherUserID int) *models.TeamRequestInfo {
	info := &models.TeamRequestInfo{RequestID: req.ID, UserID: otherUserID, Status: req.Status}
	if user, ok := s.users[otherUserID]; ok {
		info.Email = user.Email
		info.DisplayName = user.DisplayName
	}
	return info
}

func sortInfos(infos []*models.TeamRequestInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].RequestID < infos[j].RequestID })
}

func (r *memRequestRepo) DeleteForUserOnEvent(ctx context.Context, userID, eventID int) error {
	for id, req := range r.requests {
		if req.EventID != eventID {
			continue
		}
		pairScoped := req.TeamID == nil && (req.RequesterID == userID || req.RequesteeID == userID)
		sentByUser := req.RequesterID == userID
		if pairScoped || sentByUser {
			delete(r.requests, id)
		}
	}
	return nil
}
