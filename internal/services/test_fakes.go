package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"couple-sync-backend/internal/models"
)

// Test-only fakes implementing the storage interfaces. They keep state in
// maps guarded by a mutex and expose error fields for behavior injection.

// FakeCoupleStore is an in-memory CoupleStore
type FakeCoupleStore struct {
	mu      sync.Mutex
	couples map[string]*models.Couple

	createErr error
	getErr    error
	joinErr   error
	existsErr error
}

func NewFakeCoupleStore() *FakeCoupleStore {
	return &FakeCoupleStore{couples: make(map[string]*models.Couple)}
}

func copyCouple(c *models.Couple) *models.Couple {
	dup := *c
	dup.MemberIDs = append([]string(nil), c.MemberIDs...)
	if c.LastMessage != nil {
		msg := *c.LastMessage
		dup.LastMessage = &msg
	}
	return &dup
}

func (f *FakeCoupleStore) Create(_ context.Context, id, code, ownerID string) (*models.Couple, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	now := time.Now().UTC()
	couple := &models.Couple{
		ID:        id,
		Code:      code,
		MemberIDs: []string{ownerID},
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.couples[id] = couple
	return copyCouple(couple), nil
}

func (f *FakeCoupleStore) GetByID(_ context.Context, id string) (*models.Couple, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	couple, ok := f.couples[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return copyCouple(couple), nil
}

func (f *FakeCoupleStore) GetByCode(_ context.Context, code string) (*models.Couple, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, couple := range f.couples {
		if couple.Code == code {
			return copyCouple(couple), nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *FakeCoupleStore) CodeExists(_ context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	for _, couple := range f.couples {
		if couple.Code == code {
			return true, nil
		}
	}
	return false, nil
}

// Join mirrors the production read-verify-append transaction: the whole
// check-and-mutate runs under one lock, so racing joins serialize.
func (f *FakeCoupleStore) Join(_ context.Context, coupleID, userID string) (*models.Couple, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joinErr != nil {
		return nil, f.joinErr
	}
	couple, ok := f.couples[coupleID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if !couple.HasMember(userID) {
		if len(couple.MemberIDs) >= 2 {
			return nil, models.ErrCoupleFull
		}
		couple.MemberIDs = append(couple.MemberIDs, userID)
		couple.UpdatedAt = time.Now().UTC()
	}
	return copyCouple(couple), nil
}

func (f *FakeCoupleStore) RemoveMember(_ context.Context, coupleID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	couple, ok := f.couples[coupleID]
	if !ok {
		return nil
	}
	members := couple.MemberIDs[:0]
	for _, id := range couple.MemberIDs {
		if id != userID {
			members = append(members, id)
		}
	}
	couple.MemberIDs = members
	return nil
}

func (f *FakeCoupleStore) DeleteIfEmpty(_ context.Context, coupleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	couple, ok := f.couples[coupleID]
	if ok && len(couple.MemberIDs) == 0 {
		delete(f.couples, coupleID)
	}
	return nil
}

func (f *FakeCoupleStore) SetAnniversary(_ context.Context, coupleID string, date time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if couple, ok := f.couples[coupleID]; ok {
		couple.Anniversary = &date
	}
	return nil
}

func (f *FakeCoupleStore) SetLastMessage(_ context.Context, coupleID string, msg *models.LastMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	couple, ok := f.couples[coupleID]
	if !ok {
		return models.ErrNotFound
	}
	dup := *msg
	couple.LastMessage = &dup
	return nil
}

func (f *FakeCoupleStore) SetWidgetPhotoURL(_ context.Context, coupleID, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if couple, ok := f.couples[coupleID]; ok {
		couple.WidgetPhotoURL = &url
	}
	return nil
}

// FakeUserStore is an in-memory UserStore
type FakeUserStore struct {
	mu    sync.Mutex
	users map[string]*models.UserProfile

	setCoupleErr error
}

func NewFakeUserStore() *FakeUserStore {
	return &FakeUserStore{users: make(map[string]*models.UserProfile)}
}

func (f *FakeUserStore) Upsert(_ context.Context, id, displayName string) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	user, ok := f.users[id]
	if !ok {
		user = &models.UserProfile{ID: id, CreatedAt: now}
		f.users[id] = user
	}
	user.DisplayName = displayName
	user.UpdatedAt = now
	dup := *user
	return &dup, nil
}

func (f *FakeUserStore) GetByID(_ context.Context, id string) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, models.ErrUnauthenticated
	}
	dup := *user
	return &dup, nil
}

func (f *FakeUserStore) SetCoupleID(_ context.Context, userID string, coupleID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setCoupleErr != nil {
		return f.setCoupleErr
	}
	if user, ok := f.users[userID]; ok {
		user.CoupleID = coupleID
	}
	return nil
}

func (f *FakeUserStore) UpdatePushToken(_ context.Context, userID string, pushToken *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, ok := f.users[userID]; ok {
		user.PushToken = pushToken
	}
	return nil
}

// FakeQuizStore is an in-memory QuizStore
type FakeQuizStore struct {
	mu       sync.Mutex
	quizzes  map[string]*models.Quiz
	attempts map[string]*models.QuizAttempt
}

func NewFakeQuizStore() *FakeQuizStore {
	return &FakeQuizStore{
		quizzes:  make(map[string]*models.Quiz),
		attempts: make(map[string]*models.QuizAttempt),
	}
}

func (f *FakeQuizStore) AddQuiz(quiz *models.Quiz) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quizzes[quiz.ID] = quiz
}

func attemptKey(coupleID, quizID, userID string) string {
	return coupleID + "/" + quizID + "/" + userID
}

func (f *FakeQuizStore) ListMeta(_ context.Context) ([]*models.QuizMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var metas []*models.QuizMeta
	for _, q := range f.quizzes {
		metas = append(metas, &models.QuizMeta{ID: q.ID, Title: q.Title, Subtitle: q.Subtitle})
	}
	return metas, nil
}

func (f *FakeQuizStore) GetQuiz(_ context.Context, quizID string) (*models.Quiz, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	quiz, ok := f.quizzes[quizID]
	if !ok {
		return nil, models.ErrQuizNotFound
	}
	return quiz, nil
}

func (f *FakeQuizStore) GetAttempt(_ context.Context, coupleID, quizID, userID string) (*models.QuizAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	attempt, ok := f.attempts[attemptKey(coupleID, quizID, userID)]
	if !ok {
		return nil, nil
	}
	dup := *attempt
	dup.Answers = append([]int(nil), attempt.Answers...)
	return &dup, nil
}

func (f *FakeQuizStore) SaveAttempt(_ context.Context, attempt *models.QuizAttempt) (*models.QuizAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := attemptKey(attempt.CoupleID, attempt.QuizID, attempt.UserID)
	existing, ok := f.attempts[key]
	now := time.Now().UTC()
	if !ok {
		existing = &models.QuizAttempt{
			CoupleID:  attempt.CoupleID,
			QuizID:    attempt.QuizID,
			UserID:    attempt.UserID,
			StartedAt: now,
		}
		f.attempts[key] = existing
	}
	existing.DisplayName = attempt.DisplayName
	existing.Answers = append([]int(nil), attempt.Answers...)
	if existing.CompletedAt == nil && attempt.CompletedAt != nil {
		existing.CompletedAt = attempt.CompletedAt
	}
	dup := *existing
	dup.Answers = append([]int(nil), existing.Answers...)
	return &dup, nil
}

// FakeWidgetStore is an in-memory WidgetStore
type FakeWidgetStore struct {
	mu       sync.Mutex
	notes    map[string]*models.WidgetNote
	lastSent map[string]*models.LastSent
}

func NewFakeWidgetStore() *FakeWidgetStore {
	return &FakeWidgetStore{
		notes:    make(map[string]*models.WidgetNote),
		lastSent: make(map[string]*models.LastSent),
	}
}

func (f *FakeWidgetStore) SaveNote(_ context.Context, userID string, note *models.WidgetNote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	dup := *note
	f.notes[userID] = &dup
	return nil
}

func (f *FakeWidgetStore) GetNote(_ context.Context, userID string) (*models.WidgetNote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	note, ok := f.notes[userID]
	if !ok {
		return nil, nil
	}
	dup := *note
	return &dup, nil
}

func (f *FakeWidgetStore) SaveLastSent(_ context.Context, userID, coupleID string, sent *models.LastSent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	dup := *sent
	f.lastSent[userID+"/"+coupleID] = &dup
	return nil
}

func (f *FakeWidgetStore) GetLastSent(_ context.Context, userID, coupleID string) (*models.LastSent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sent, ok := f.lastSent[userID+"/"+coupleID]
	if !ok {
		return nil, nil
	}
	dup := *sent
	return &dup, nil
}

func (f *FakeWidgetStore) ClearForUser(_ context.Context, userID, coupleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.notes, userID)
	delete(f.lastSent, userID+"/"+coupleID)
	return nil
}

// FakeSignalStore is an in-memory SignalStore
type FakeSignalStore struct {
	mu      sync.Mutex
	signals map[string]*models.CoupleSignal

	bumpErr error
}

func NewFakeSignalStore() *FakeSignalStore {
	return &FakeSignalStore{signals: make(map[string]*models.CoupleSignal)}
}

func (f *FakeSignalStore) Ensure(_ context.Context, coupleID string) (*models.CoupleSignal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sig, ok := f.signals[coupleID]
	if !ok {
		sig = &models.CoupleSignal{CoupleID: coupleID, EventType: "bootstrap", LastEventAt: time.Now().UTC()}
		f.signals[coupleID] = sig
	}
	dup := *sig
	return &dup, nil
}

func (f *FakeSignalStore) Bump(_ context.Context, coupleID, eventType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bumpErr != nil {
		return f.bumpErr
	}
	sig, ok := f.signals[coupleID]
	if !ok {
		sig = &models.CoupleSignal{CoupleID: coupleID}
		f.signals[coupleID] = sig
	}
	sig.EventType = eventType
	sig.LastEventAt = time.Now().UTC()
	sig.Version++
	return nil
}

func (f *FakeSignalStore) Delete(_ context.Context, coupleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.signals, coupleID)
	return nil
}

// FakeHub records sent messages per user instead of holding sockets
type FakeHub struct {
	mu     sync.Mutex
	online map[string]bool
	sent   map[string][]WSMessage
}

func NewFakeHub() *FakeHub {
	return &FakeHub{
		online: make(map[string]bool),
		sent:   make(map[string][]WSMessage),
	}
}

func (f *FakeHub) SetOnline(userID string, online bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[userID] = online
}

func (f *FakeHub) SendToUser(userID string, message WSMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.online[userID] {
		return fmt.Errorf("user %s is not connected", userID)
	}
	f.sent[userID] = append(f.sent[userID], message)
	return nil
}

func (f *FakeHub) IsOnline(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online[userID]
}

func (f *FakeHub) Sent(userID string) []WSMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]WSMessage(nil), f.sent[userID]...)
}

// FakeRelay records bump calls
type FakeRelay struct {
	mu      sync.Mutex
	bumps   []string
	ensured []string
	deleted []string
}

func NewFakeRelay() *FakeRelay {
	return &FakeRelay{}
}

func (f *FakeRelay) EnsureSignal(_ context.Context, coupleID string) (*models.CoupleSignal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, coupleID)
	return &models.CoupleSignal{CoupleID: coupleID, EventType: "bootstrap", LastEventAt: time.Now().UTC()}, nil
}

func (f *FakeRelay) Bump(_ context.Context, coupleID, eventType, exceptUserID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bumps = append(f.bumps, coupleID+":"+eventType+":"+exceptUserID)
}

func (f *FakeRelay) DeleteSignal(_ context.Context, coupleID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, coupleID)
}

func (f *FakeRelay) Ensured() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ensured...)
}

func (f *FakeRelay) Bumps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bumps...)
}

func (f *FakeRelay) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// FakePushSender records device deliveries
type FakePushSender struct {
	mu      sync.Mutex
	sent    []string
	sendErr error
}

func NewFakePushSender() *FakePushSender {
	return &FakePushSender{}
}

func (f *FakePushSender) Send(_ context.Context, deviceToken, eventType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, deviceToken+":"+eventType)
	return nil
}

func (f *FakePushSender) SentPushes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}
