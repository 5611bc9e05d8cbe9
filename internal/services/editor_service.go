package services

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"adsdash/internal/logger"
)

// editorHeader is prepended to the file handed to the editor; lines starting with "#"
// are dropped from the result.
const editorHeader = `# Edit the analysis rule below. Lines starting with # are ignored.
# Save and exit to apply, or leave it empty to cancel.
`

// EditorService opens rule prompts in the user's external editor.
type EditorService struct {
	initialized bool
	command     string
	tempDir     string
	stdin       io.Reader
	stdout      io.Writer
}

// NewEditorService creates an EditorService. An empty command falls back to $VISUAL,
// $EDITOR and then the first common editor found in PATH.
func NewEditorService(command string) *EditorService {
	return &EditorService{command: command, stdin: os.Stdin, stdout: os.Stdout}
}

// Name returns the service name "editor" for registration.
func (e *EditorService) Name() string {
	return "editor"
}

// Initialize creates the scratch directory used for edited files.
func (e *EditorService) Initialize() error {
	tempDir, err := os.MkdirTemp("", "adsdash-editor-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	e.tempDir = tempDir
	e.initialized = true
	logger.Debug("EditorService initialized", "tempDir", tempDir)
	return nil
}

// Edit opens the editor on initial and returns the saved text with comment lines
// removed and surrounding blank space trimmed.
func (e *EditorService) Edit(name, initial string) (string, error) {
	if !e.initialized {
		return "", fmt.Errorf("editor service not initialized")
	}

	editorCmd := e.editorCommand()
	if editorCmd == "" {
		return "", fmt.Errorf("no editor configured or found; set $EDITOR")
	}

	file := filepath.Join(e.tempDir, sanitizeFileName(name)+".md")
	if err := os.WriteFile(file, []byte(editorHeader+initial), 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", file, err)
	}
	defer func() {
		if err := os.Remove(file); err != nil {
			logger.Error("Failed to remove temp file", "error", err, "file", file)
		}
	}()

	logger.Debug("Opening editor", "editor", editorCmd, "file", file)
	if err := e.run(editorCmd, file); err != nil {
		return "", err
	}

	content, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read editor content: %w", err)
	}
	return stripComments(string(content)), nil
}

func (e *EditorService) editorCommand() string {
	if e.command != "" {
		return e.command
	}
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if editor := os.Getenv(env); editor != "" {
			return editor
		}
	}
	for _, editor := range []string{"nvim", "vim", "nano", "vi"} {
		if _, err := exec.LookPath(editor); err == nil {
			return editor
		}
	}
	return ""
}

func (e *EditorService) run(editorCmd, file string) error {
	parts := strings.Fields(editorCmd)
	if len(parts) == 0 {
		return fmt.Errorf("empty editor command")
	}

	cmd := exec.Command(parts[0], append(parts[1:], file)...)
	cmd.Stdin = e.stdin
	cmd.Stdout = e.stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}
	return nil
}

// Cleanup removes the scratch directory.
func (e *EditorService) Cleanup() error {
	if e.tempDir == "" {
		return nil
	}
	if err := os.RemoveAll(e.tempDir); err != nil {
		logger.Error("Failed to cleanup editor temp directory", "error", err, "tempDir", e.tempDir)
		return err
	}
	return nil
}

func stripComments(content string) string {
	lines := strings.Split(content, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(line, "#") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func sanitizeFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" {
		return "rule"
	}
	return name
}

// GetGlobalEditorService returns the editor service from the global registry.
func GetGlobalEditorService() (*EditorService, error) {
	return Lookup[*EditorService](GetGlobalRegistry(), "editor")
}
