package translation

import (
	"context"
	"fmt"
	"strings"

	"github.com/Taichi-iskw/yt-digest/internal/errors"
	"github.com/Taichi-iskw/yt-digest/internal/service/common"
)

// commandTranslator shells out to translate-shell
type commandTranslator struct {
	cmdRunner common.CmdRunner
	binary    string
}

// NewCommandTranslator creates a Translator using the translate-shell CLI
func NewCommandTranslator(binary string) Translator {
	return NewCommandTranslatorWithCmdRunner(common.NewCmdRunner(), binary)
}

// NewCommandTranslatorWithCmdRunner creates a command Translator with custom CmdRunner (for testing)
func NewCommandTranslatorWithCmdRunner(cmdRunner common.CmdRunner, binary string) Translator {
	if binary == "" {
		binary = "trans"
	}
	return &commandTranslator{cmdRunner: cmdRunner, binary: binary}
}

// Translate runs `trans -brief -no-ansi [sl]:tl text`
func (t *commandTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New(errors.CodeInvalidArg, "text cannot be empty")
	}
	if targetLang == "" {
		return "", errors.New(errors.CodeInvalidArg, "target language is required")
	}

	langs := ":" + targetLang
	if sourceLang != "" && sourceLang != "auto" && sourceLang != "unknown" {
		langs = sourceLang + langs
	}

	args := []string{"-brief", "-no-ansi", "-no-autocorrect", langs, text}

	output, err := t.cmdRunner.Run(ctx, t.binary, args...)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeExternal, t.formatError(err))
	}

	return strings.TrimSpace(string(output)), nil
}

// formatError provides user-friendly messages for translate-shell failures
func (t *commandTranslator) formatError(err error) string {
	errMsg := err.Error()

	switch {
	case strings.Contains(errMsg, "executable file not found") || strings.Contains(errMsg, "No such file or directory"):
		return fmt.Sprintf("%s is not installed or not found in PATH. Please install translate-shell", t.binary)
	case strings.Contains(errMsg, "429") || strings.Contains(errMsg, "Too Many Requests"):
		return "rate limited by translation engine - please try again later"
	case strings.Contains(errMsg, "Connection") || strings.Contains(errMsg, "network"):
		return "network connection error - please check your internet connection"
	default:
		return fmt.Sprintf("translation command failed - %s", errMsg)
	}
}
