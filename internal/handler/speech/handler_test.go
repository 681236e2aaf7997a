package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-ask/backend/internal/model/answer"
	speechmodel "github.com/zhouzirui/z-ask/backend/internal/model/speech"
	"github.com/zhouzirui/z-ask/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/z-ask/backend/internal/service/chat"
	"github.com/zhouzirui/z-ask/backend/internal/service/favorites"
	speechsvc "github.com/zhouzirui/z-ask/backend/internal/service/speech"
	"github.com/zhouzirui/z-ask/backend/internal/storage/kv"
)

type fakeSynth struct {
	texts []string
}

func (f *fakeSynth) Synthesize(_ context.Context, req speechmodel.TTSRequest) (*speechmodel.TTSResponse, error) {
	f.texts = append(f.texts, req.Text)
	return &speechmodel.TTSResponse{AudioData: []byte("ID3" + req.Text), Format: "mp3"}, nil
}

type fixedSession struct{ id string }

func (s fixedSession) ID() string                          { return s.id }
func (s fixedSession) Authenticated(context.Context) bool { return true }
func (s fixedSession) Send(context.Context, string, ai.ProgressFunc) (string, error) {
	return "spoken answer", nil
}

type fixedProvider struct{}

func (fixedProvider) NewSession(context.Context) (ai.Session, error) {
	return fixedSession{id: uuid.NewString()}, nil
}

func setupRouter(t *testing.T, enabled bool) (*chi.Mux, *chatservice.Service, *fakeSynth) {
	t.Helper()

	synth := &fakeSynth{}
	speaker := speechsvc.NewSpeakerWith(synth, enabled, 0)

	svc, err := chatservice.New(context.Background(), chatservice.Options{
		Provider:  fixedProvider{},
		Favorites: favorites.NewStore(kv.NewMemoryStore()),
		Speaker:   speaker,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = svc.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
		svc.Wait()
	})

	r := chi.NewRouter()
	New(svc, synth, enabled).RegisterRoutes(r)
	return r, svc, synth
}

func submit(t *testing.T, svc *chatservice.Service) answer.Answer {
	t.Helper()
	a, err := svc.Submit(context.Background(), "say something")
	require.NoError(t, err)
	svc.Wait()
	return a
}

func TestSpeakAnswerReturnsAudio(t *testing.T) {
	r, svc, synth := setupRouter(t, true)
	a := submit(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/answers/"+a.ID+"/speak", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "audio/mpeg", resp.Header().Get("Content-Type"))
	assert.Equal(t, "ID3spoken answer", resp.Body.String())
	assert.Equal(t, []string{"spoken answer"}, synth.texts)
}

func TestSpeakUnknownAnswer(t *testing.T) {
	r, _, _ := setupRouter(t, true)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/answers/missing/speak", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestSpeakDisabled(t *testing.T) {
	r, svc, _ := setupRouter(t, false)
	a := submit(t, svc)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/answers/"+a.ID+"/speak", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/speech/synthesize", bytes.NewBufferString(`{"text":"hi"}`)))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestSynthesizeFreeText(t *testing.T) {
	r, _, synth := setupRouter(t, true)

	body, _ := json.Marshal(map[string]string{"text": "hello there"})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/speech/synthesize", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ID3hello there", resp.Body.String())
	assert.Equal(t, []string{"hello there"}, synth.texts)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/speech/synthesize", bytes.NewBufferString(`{"text":""}`)))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestStopAndHealth(t *testing.T) {
	r, _, _ := setupRouter(t, true)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/speech/stop", nil))
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/speech/health", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"ok","enabled":true}`, resp.Body.String())
}
