package services

import (
	"github.com/Dosada05/event-teams/cache"
	"github.com/Dosada05/event-teams/models"
)

// EventVocabulary проверяет имя события против настроенного словаря.
type EventVocabulary interface {
	Contains(name string) bool
}

// StaticVocabulary — словарь из конфигурации, неизменяемый после старта.
type StaticVocabulary struct {
	names map[string]struct{}
}

func NewStaticVocabulary(names []string) *StaticVocabulary {
	v := &StaticVocabulary{names: make(map[string]struct{}, len(names))}
	for _, name := range names {
		v.names[name] = struct{}{}
	}
	return v
}

func (v *StaticVocabulary) Contains(name string) bool {
	_, ok := v.names[name]
	return ok
}

// Notifier рассылает доменные уведомления. Ошибки доставки не влияют на
// исход операции, поэтому методы ничего не возвращают.
type Notifier interface {
	EventCreated(event *models.Event)
	UserEnrolled(userID, eventID int)
	RequestCreated(req *models.TeamRequest)
}

// NopNotifier используется в тестах и при отключённых уведомлениях.
type NopNotifier struct{}

func (NopNotifier) EventCreated(*models.Event)         {}
func (NopNotifier) UserEnrolled(userID, eventID int)   {}
func (NopNotifier) RequestCreated(*models.TeamRequest) {}

// RegistrationCaches — кэши читающих операций зачисления. Разделяются
// между сервисами: запись о команде в одном сервисе инвалидирует списки
// в другом.
type RegistrationCaches struct {
	teamEvents   *cache.Cache[int, []*models.EnrolledEvent]
	singleEvents *cache.Cache[int, []*models.EnrolledEvent]
	eventUsers   *cache.Cache[int, []*models.Registration]
}

func NewRegistrationCaches(size int) *RegistrationCaches {
	return &RegistrationCaches{
		teamEvents:   cache.New[int, []*models.EnrolledEvent](size),
		singleEvents: cache.New[int, []*models.EnrolledEvent](size),
		eventUsers:   cache.New[int, []*models.Registration](size),
	}
}

// InvalidateUser сбрасывает списки событий пользователя.
func (c *RegistrationCaches) InvalidateUser(userID int) {
	c.teamEvents.Delete(userID)
	c.singleEvents.Delete(userID)
}

// InvalidateEvent сбрасывает список участников события.
func (c *RegistrationCaches) InvalidateEvent(eventID int) {
	c.eventUsers.Delete(eventID)
}

// Purge сбрасывает всё; используется после пакетных операций, где
// вычислять точный набор затронутых ключей дороже, чем перечитать.
func (c *RegistrationCaches) Purge() {
	c.teamEvents.Purge()
	c.singleEvents.Purge()
	c.eventUsers.Purge()
}
