package custody

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

const (
	// MinPasswordLength is the minimum number of symbols in a password
	MinPasswordLength = 5
	// MinMnemonicWords is the minimum word count accepted for wallet recovery
	MinMnemonicWords = 12
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]*$`)

var (
	msgUsername = "Username Should Contain Only Letters"
	msgPassword = fmt.Sprintf("Password Can Not Contain Less Than %d Symbols", MinPasswordLength)
	msgEmail    = "Email Is Not Valid"
	msgMnemonic = fmt.Sprintf("Phrases Should Contain At Least %d Words", MinMnemonicWords)
)

func usernameRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error(msgUsername),
		validation.Match(usernamePattern).Error(msgUsername),
	}
}

func passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error(msgPassword),
		validation.Length(MinPasswordLength, 0).Error(msgPassword),
	}
}

func emailRules() []validation.Rule {
	return []validation.Rule{
		is.Email.Error(msgEmail),
	}
}

func mnemonicRule(value any) error {
	s, _ := value.(string)
	if len(strings.Fields(s)) < MinMnemonicWords {
		return goerrors.New(msgMnemonic, goerrors.CategoryValidation)
	}
	return nil
}

// ValidatePassword checks a candidate password before hashing
func ValidatePassword(password string) error {
	return validationError(validation.Validate(password, passwordRules()...), "password")
}

// ValidateMnemonic checks a recovery phrase word count
func ValidateMnemonic(mnemonic string) error {
	return validationError(validation.Validate(mnemonic, validation.By(mnemonicRule)), "mnemonics")
}

// validationError turns ozzo errors into ErrValidation. The first failing
// field, in name order, becomes the message.
func validationError(err error, field string) error {
	if err == nil {
		return nil
	}

	fields := map[string]string{}
	var errs validation.Errors
	if goerrors.As(err, &errs) {
		for name, fieldErr := range errs {
			if fieldErr != nil {
				fields[name] = errorMessage(fieldErr)
			}
		}
	} else {
		fields[field] = errorMessage(err)
	}

	if len(fields) == 0 {
		return nil
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	return withMessage(ErrValidation, fields[names[0]]).
		WithMetadata(map[string]any{"fields": fields})
}

func errorMessage(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Message
	}
	return err.Error()
}
