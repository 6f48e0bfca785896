package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/matryer/is"
)

func TestKindClassification(t *testing.T) {
	is := is.New(t)

	is.Equal(Kind(ErrEventNotFound), KindNotFound)
	is.Equal(Kind(ErrEventNameInvalid), KindValidation)
	is.Equal(Kind(ErrDeadlinePassed), KindBusinessRule)
	is.Equal(Kind(errors.New("connection refused")), KindInfrastructure)
}

func TestKindSeesWrappedErrors(t *testing.T) {
	is := is.New(t)

	wrapped := fmt.Errorf("%w: request is not pending", ErrValidationFailed)
	is.Equal(Kind(wrapped), KindValidation)

	doubleWrapped := fmt.Errorf("accept failed: %w", fmt.Errorf("%w", ErrTeamFull))
	is.Equal(Kind(doubleWrapped), KindBusinessRule)
}
