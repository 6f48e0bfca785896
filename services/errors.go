package services

import "errors"

// ErrorKind — классификация ошибок для вызывающей стороны: kind + message
// достаточно, чтобы построить ответ без разбора строк.
type ErrorKind string

const (
	// KindValidation — некорректная форма входа, ошибка вызывающего кода.
	KindValidation ErrorKind = "validation"
	// KindBusinessRule — нарушение доменного правила; повтор без изменения
	// входа бессмыслен.
	KindBusinessRule ErrorKind = "business_rule"
	// KindNotFound — неизвестный идентификатор.
	KindNotFound ErrorKind = "not_found"
	// KindInfrastructure — стор недоступен; безопасно повторить с backoff.
	KindInfrastructure ErrorKind = "infrastructure"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Не найдено
	ErrUserNotFound         = errors.New("user not found")
	ErrEventNotFound        = errors.New("event not found")
	ErrTeamNotFound         = errors.New("team not found")
	ErrTeamMemberNotFound   = errors.New("team member not found")
	ErrRequestNotFound      = errors.New("team request not found")
	ErrRegistrationNotFound = errors.New("registration not found")

	// Ошибки валидации
	ErrValidationFailed        = errors.New("validation failed")
	ErrEventNameInvalid        = errors.New("event name is invalid or not in the configured vocabulary")
	ErrEventStartInPast        = errors.New("event start time must be greater than current time")
	ErrEventEndBeforeStart     = errors.New("event end time must be greater than start time")
	ErrEventDeadlineOutOfRange = errors.New("event deadline must be between start time and end time")
	ErrEventTeamSizeInvalid    = errors.New("invalid number of team members: minimum is 2 and maximum must not be below minimum")
	ErrEventAltRequired        = errors.New("team event requires an alternate event")
	ErrEventAltNotFound        = errors.New("alternate event not found")
	ErrEventAltIsTeamEvent     = errors.New("alternate event must not be a team event")
	ErrEventAltEndsTooEarly    = errors.New("team event must not end after its alternate event")
	ErrOrganizerNotAllowed     = errors.New("organizer must be an administrator")
	ErrInvalidDirection        = errors.New("request direction must be incoming or outgoing")

	// Нарушения бизнес-правил
	ErrDeadlinePassed          = errors.New("deadline is over")
	ErrEventAlreadyStarted     = errors.New("the event has already started")
	ErrAlreadyEnrolled         = errors.New("user is already enrolled in this event")
	ErrNotSubscribed           = errors.New("user has no active membership covering the event")
	ErrTeamFull                = errors.New("team is full")
	ErrRequestExpired          = errors.New("team request has expired")
	ErrRequestAlreadyReceived  = errors.New("a request from this user already exists, check your incoming requests")
	ErrRequestAlreadySent      = errors.New("a pending request to this user already exists")
	ErrCorporateGroupMismatch  = errors.New("members must belong to the same corporate account")

	// Ошибки аутентификации
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
)

// Kind возвращает классификацию ошибки сервисного слоя.
// Неопознанные ошибки считаются инфраструктурными: их безопаснее
// повторить, чем показать пользователю.
func Kind(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrEventNotFound),
		errors.Is(err, ErrTeamNotFound),
		errors.Is(err, ErrTeamMemberNotFound),
		errors.Is(err, ErrRequestNotFound),
		errors.Is(err, ErrRegistrationNotFound):
		return KindNotFound

	case errors.Is(err, ErrValidationFailed),
		errors.Is(err, ErrEventNameInvalid),
		errors.Is(err, ErrEventStartInPast),
		errors.Is(err, ErrEventEndBeforeStart),
		errors.Is(err, ErrEventDeadlineOutOfRange),
		errors.Is(err, ErrEventTeamSizeInvalid),
		errors.Is(err, ErrEventAltRequired),
		errors.Is(err, ErrEventAltNotFound),
		errors.Is(err, ErrEventAltIsTeamEvent),
		errors.Is(err, ErrEventAltEndsTooEarly),
		errors.Is(err, ErrOrganizerNotAllowed),
		errors.Is(err, ErrInvalidDirection):
		return KindValidation

	case errors.Is(err, ErrDeadlinePassed),
		errors.Is(err, ErrEventAlreadyStarted),
		errors.Is(err, ErrAlreadyEnrolled),
		errors.Is(err, ErrNotSubscribed),
		errors.Is(err, ErrTeamFull),
		errors.Is(err, ErrRequestExpired),
		errors.Is(err, ErrRequestAlreadyReceived),
		errors.Is(err, ErrRequestAlreadySent),
		errors.Is(err, ErrCorporateGroupMismatch),
		errors.Is(err, ErrAuthInvalidCredentials):
		return KindBusinessRule

	default:
		return KindInfrastructure
	}
}
