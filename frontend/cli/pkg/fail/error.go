package fail

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/furisto/seyal/backend/agent"
	"github.com/furisto/seyal/backend/memory"
	"github.com/furisto/seyal/backend/model"
	"github.com/furisto/seyal/frontend/cli/pkg/terminal"
	"github.com/furisto/seyal/shared/resilience"
)

const issuesURL = "https://github.com/furisto/seyal/issues/new"

type UserError struct {
	Cause       error
	UserMessage string
	Solutions   []string
	TechDetails string
	HelpURLs    []string
}

func (e *UserError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", terminal.ErrorSymbol, terminal.Bold(e.UserMessage))

	if len(e.Solutions) > 0 {
		fmt.Fprintf(&b, "%s Try these solutions:\n", terminal.InfoSymbol)
		for i, solution := range e.Solutions {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, solution)
		}
		b.WriteString("\n")
	}

	if e.TechDetails != "" {
		fmt.Fprintf(&b, "Technical details: %s\n", e.TechDetails)
	}

	if len(e.HelpURLs) > 0 {
		b.WriteString("If the problem persists:\n")
		for _, url := range e.HelpURLs {
			fmt.Fprintf(&b, "%s %s\n", terminal.LinkSymbol, url)
		}
	}

	return b.String()
}

func (e *UserError) Unwrap() error {
	return e.Cause
}

func NewMissingAPIKeyError(providerName, envVar string, err error) *UserError {
	return &UserError{
		Cause:       err,
		UserMessage: fmt.Sprintf("Please provide a %s API Key to run the agents.", providerName),
		Solutions: []string{
			fmt.Sprintf("Export the key: export %s=<your key>", envVar),
			"Store it in the system keyring: seyal apikey set",
			"Add api_key to your config file: seyal config path",
		},
	}
}

func NewProviderError(err *model.ProviderError) *UserError {
	var solutions []string
	switch err.Kind {
	case model.ProviderErrorKindAuthentication:
		solutions = []string{
			"Check that the API key is valid and not revoked",
			"Replace the stored key: seyal apikey set",
		}
	case model.ProviderErrorKindRateLimitExceeded, model.ProviderErrorKindOverloaded:
		solutions = []string{
			"Wait a minute and try again",
			"Configure a smaller model for the role in your config file",
		}
	default:
		solutions = []string{
			"Try again, the model provider may have had a transient problem",
			"Run with --log-level debug to see the full request flow",
		}
	}

	return &UserError{
		Cause:       err,
		UserMessage: fmt.Sprintf("The model provider rejected the request: %s", err.Message()),
		Solutions:   solutions,
		TechDetails: err.Error(),
		HelpURLs:    []string{issuesURL},
	}
}

// EnhanceError attaches solutions to errors a user can act on. Errors that
// are already user errors or that carry no useful hint pass through.
func EnhanceError(err error, context map[string]interface{}) error {
	if err == nil {
		return nil
	}

	var userErr *UserError
	if errors.As(err, &userErr) {
		return err
	}

	var providerErr *model.ProviderError
	if errors.As(err, &providerErr) {
		return NewProviderError(providerErr)
	}

	switch {
	case errors.Is(err, agent.ErrMissingAPIKey):
		providerName, _ := context["provider_name"].(string)
		envVar, _ := context["env_var"].(string)
		return NewMissingAPIKeyError(providerName, envVar, err)
	case errors.Is(err, agent.ErrEmptyGoal):
		return &UserError{Cause: err, UserMessage: "Please enter a goal."}
	case errors.Is(err, memory.ErrEmptyUpdate):
		return &UserError{Cause: err, UserMessage: "Please enter your daily progress."}
	case errors.Is(err, agent.ErrNotEnoughData):
		return &UserError{
			Cause:       err,
			UserMessage: "Not enough data yet. Log a few days of actions before reflecting!",
			Solutions:   []string{"Log today's progress: seyal log \"what I did\" --mood Good"},
		}
	case errors.Is(err, memory.ErrTaskNotFound):
		return &UserError{
			Cause:       err,
			UserMessage: "There is no task with that number",
			Solutions:   []string{"List today's tasks with their numbers: seyal tasks show"},
			TechDetails: err.Error(),
		}
	case errors.Is(err, resilience.ErrCircuitOpen):
		return &UserError{
			Cause:       err,
			UserMessage: "The model provider failed repeatedly and calls are paused",
			Solutions:   []string{"Wait a minute before trying again"},
			TechDetails: err.Error(),
		}
	}

	if os.IsPermission(err) {
		if path, ok := context["path"].(string); ok {
			return NewPermissionError(path, err)
		}
	}

	if errors.Is(err, syscall.EADDRINUSE) || strings.Contains(err.Error(), "address already in use") {
		return &UserError{
			Cause:       err,
			UserMessage: "The network address is already in use by another process",
			Solutions: []string{
				"Choose a different port: seyal serve --listen-http 127.0.0.1:8502",
				"Stop the process using this port",
				"Use a Unix socket instead: seyal serve --listen-unix /tmp/seyal.sock",
			},
			TechDetails: err.Error(),
			HelpURLs:    []string{issuesURL},
		}
	}

	if strings.Contains(err.Error(), "database is locked") {
		return &UserError{
			Cause:       err,
			UserMessage: "The session database is used by another seyal process",
			Solutions: []string{
				"Wait for the other command to finish",
				"Point this command at another database: SEYAL_DB_PATH=/tmp/seyal.db",
			},
			TechDetails: err.Error(),
		}
	}

	return err
}

func NewPermissionError(path string, err error) *UserError {
	return &UserError{
		Cause:       err,
		UserMessage: fmt.Sprintf("Permission denied accessing %s", path),
		Solutions: []string{
			"Check file permissions and ownership",
			"Ensure you have write access to the directory",
			"Verify the path exists and is accessible",
		},
		TechDetails: fmt.Sprintf("Failed to access %s: %v", path, err),
		HelpURLs:    []string{issuesURL},
	}
}
