package oauth2scheme

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"golang.org/x/xerrors"
)

// receiveCodeViaUserInput shows the authorization URL and reads the redirect URL from stdin.
// It is used where the custom scheme cannot be registered, such as a remote shell.
func receiveCodeViaUserInput(ctx context.Context, c *Config, authURL string) (string, error) {
	fmt.Fprintf(c.Prompt, "Open the following URL in a browser:\n\n%s\n\n", authURL)
	fmt.Fprint(c.Prompt, c.NonInteractivePromptText)

	type input struct {
		line string
		err  error
	}
	inputCh := make(chan input, 1)
	go func() {
		line, err := bufio.NewReader(c.Stdin).ReadString('\n')
		if err != nil && line == "" {
			inputCh <- input{err: err}
			return
		}
		inputCh <- input{line: strings.TrimSpace(line)}
	}()
	select {
	case in := <-inputCh:
		if in.err != nil {
			return "", xerrors.Errorf("non-interactive authorization error: %w", in.err)
		}
		if in.line == "" {
			return "", xerrors.New("non-interactive authorization error: empty input")
		}
		return in.line, nil
	case <-ctx.Done():
		return "", xerrors.Errorf("context done while waiting for the input: %w", ctx.Err())
	}
}
