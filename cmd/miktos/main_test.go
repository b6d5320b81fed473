package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/picatz/miktos"
	"github.com/picatz/miktos/internal/config"
	"github.com/picatz/miktos/internal/history"
	"github.com/picatz/miktos/internal/history/storage/memory"
	"github.com/shoenig/test/must"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags restores every flag in the command tree to its default, since
// cobra commands are package globals shared by tests.
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// testCLI points the CLI at a fake API served by handler, with history in a
// temporary directory, and returns a function running the CLI.
func testCLI(t *testing.T, apiKey string, handler http.HandlerFunc) func(args ...string) (string, error) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg = &config.Config{
		APIKey:      apiKey,
		BaseURL:     srv.URL,
		Model:       miktos.ModelGPT4o,
		HistoryPath: t.TempDir(),
	}
	client = miktos.NewClient(cfg.APIKey, miktos.WithBaseURL(srv.URL))

	return func(args ...string) (string, error) {
		resetFlags(rootCmd)

		var out bytes.Buffer
		rootCmd.SetArgs(args)
		rootCmd.SetIn(bytes.NewReader(nil))
		rootCmd.SetOut(&out)
		rootCmd.SetErr(io.Discard)

		err := rootCmd.ExecuteContext(t.Context())
		return out.String(), err
	}
}

func initRepo(t *testing.T, urls ...string) string {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	must.NoError(t, err)

	if len(urls) > 0 {
		_, err = repo.CreateRemote(&gitconfig.RemoteConfig{
			Name: git.DefaultRemoteName,
			URLs: urls,
		})
		must.NoError(t, err)
	}
	return dir
}

func TestOriginURL(t *testing.T) {
	dir := initRepo(t, "https://github.com/picatz/miktos.git", "git@github.com:picatz/miktos.git")

	url, err := originURL(dir)
	must.NoError(t, err)
	must.Eq(t, "https://github.com/picatz/miktos.git", url)

	_, err = originURL(initRepo(t))
	must.Error(t, err)

	_, err = originURL(t.TempDir())
	must.Error(t, err)
}

func TestProjectsCreate_fromGit(t *testing.T) {
	dir := initRepo(t, "https://github.com/picatz/miktos.git")

	run := testCLI(t, "test-key", func(w http.ResponseWriter, r *http.Request) {
		must.Eq(t, http.MethodPost, r.Method)
		must.Eq(t, "/projects", r.URL.Path)

		var body map[string]any
		must.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		must.Eq(t, map[string]any{
			"name":           "miktos",
			"context_notes":  "",
			"repository_url": "https://github.com/picatz/miktos.git",
		}, body)

		io.WriteString(w, `{"id":"p1","name":"miktos"}`)
	})

	out, err := run("projects", "create", "miktos", "--context-notes", "", "--from-git", dir)
	must.NoError(t, err)
	must.StrContains(t, out, "Created project: miktos with ID: p1")
}

func TestProjectsList(t *testing.T) {
	run := testCLI(t, "test-key", func(w http.ResponseWriter, r *http.Request) {
		must.Eq(t, "skip=5&limit=2", r.URL.RawQuery)
		io.WriteString(w, `[{"id":"p1","name":"one","description":"first"},{"id":"p2","name":"two"}]`)
	})

	out, err := run("projects", "list", "--skip", "5", "--limit", "2")
	must.NoError(t, err)
	must.StrContains(t, out, "p1 one first")
	must.StrContains(t, out, "p2 two")
	must.StrContains(t, out, "Total projects: 2")
}

func TestGenerate_recordsHistory(t *testing.T) {
	run := testCLI(t, "test-key", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		must.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		must.Eq(t, any("p1"), body["project_id"])
		must.Eq(t, any(miktos.ModelGPT4o), body["model"])
		must.Eq(t, any(0.0), body["temperature"])
		must.Eq(t, any(float64(miktos.DefaultMaxTokens)), body["max_tokens"])

		if body["stream"] == true {
			io.WriteString(w, "streamed ")
			io.WriteString(w, "reply")
			return
		}
		io.WriteString(w, `{"content":"plain reply"}`)
	})

	out, err := run("generate", "--project", "p1", "--temperature", "0", "--stream", "write", "a", "haiku")
	must.NoError(t, err)
	must.StrContains(t, out, "streamed reply")

	out, err = run("generate", "-p", "p1", "--temperature", "0", "again")
	must.NoError(t, err)
	must.StrContains(t, out, "plain reply")

	_, err = run("generate", "-p", "p1", "--temperature", "0", "--no-history", "unrecorded")
	must.NoError(t, err)

	out, err = run("history", "list")
	must.NoError(t, err)
	must.StrContains(t, out, "> write a haiku")
	must.StrContains(t, out, "streamed reply")
	must.StrContains(t, out, "> again")
	must.StrNotContains(t, out, "unrecorded")

	out, err = run("history", "clear")
	must.NoError(t, err)
	must.StrContains(t, out, "Deleted 2 records.")
}

func TestGenerate_invalidFlags(t *testing.T) {
	run := testCLI(t, "test-key", func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := run("generate", "-p", "p1", "--max-tokens", "0", "hi")
	must.ErrorContains(t, err, "max tokens must be positive")

	_, err = run("generate", "hi")
	must.ErrorContains(t, err, "project")
}

func TestRequireAPIKey(t *testing.T) {
	run := testCLI(t, "", func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := run("projects", "list")
	must.ErrorIs(t, err, errMissingAPIKey)
}

func TestAuth(t *testing.T) {
	run := testCLI(t, "", func(w http.ResponseWriter, r *http.Request) {
		must.Eq(t, "/auth/token", r.URL.Path)
		io.WriteString(w, `{"access_token":"tok-123","token_type":"bearer","expires_in":3600}`)
	})

	out, err := run("auth", "--email", "a@example.com", "--password", "pw")
	must.NoError(t, err)
	must.StrContains(t, out, "export MIKTOS_API_KEY=tok-123")
	must.StrContains(t, out, "Token expires in 3600s.")
	must.Eq(t, "tok-123", client.APIKey())
}

func TestDemo(t *testing.T) {
	run := testCLI(t, "test-key", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/projects":
			io.WriteString(w, `{"id":"p1","name":"Go API Example"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/projects":
			io.WriteString(w, `[{"id":"p1","name":"Go API Example"}]`)
		case r.URL.Path == "/generate":
			var body map[string]any
			must.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body["stream"] == true {
				must.Eq(t, any(miktos.ModelClaude3Opus), body["model"])
				io.WriteString(w, "Circuits hum softly")
				return
			}
			io.WriteString(w, `{"content":"Qubits can be zero and one at once."}`)
		default:
			http.NotFound(w, r)
		}
	})

	out, err := run("demo")
	must.NoError(t, err)
	must.StrContains(t, out, "Created project: Go API Example with ID: p1")
	must.StrContains(t, out, "Qubits can be zero and one at once.")
	must.StrContains(t, out, "Total projects: 1")
	must.StrContains(t, out, "Circuits hum softly")
}

var errDiskGone = errors.New("disk gone")

// failingCloseBackend keeps records in memory but fails to close.
type failingCloseBackend struct {
	*memory.Backend[string, history.Record]
}

func (failingCloseBackend) Close(context.Context) error {
	return errDiskGone
}

func TestCloseHistory(t *testing.T) {
	newLog := func() *history.Log {
		return history.NewLog(failingCloseBackend{memory.NewBackend[string, history.Record]()})
	}

	var err error
	closeHistory(t.Context(), newLog(), &err)
	must.ErrorIs(t, err, errDiskGone)
	must.ErrorContains(t, err, "failed to close history")

	// An earlier error is kept alongside the close error.
	err = errMissingAPIKey
	closeHistory(t.Context(), newLog(), &err)
	must.ErrorIs(t, err, errMissingAPIKey)
	must.ErrorIs(t, err, errDiskGone)

	err = nil
	closeHistory(t.Context(), history.NewLog(memory.NewBackend[string, history.Record]()), &err)
	must.NoError(t, err)
}
