package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-ask/backend/internal/config"
	"github.com/zhouzirui/z-ask/backend/internal/model/speech"
)

// DefaultTTSURL is the Volcengine unidirectional streaming TTS endpoint.
const DefaultTTSURL = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"

const (
	resourceDefault = "volc.service_type.10029"
	resourceMega    = "volc.megatts.default"
	resourceSeed    = "seed-tts-2.0"
)

// TTSClient synthesizes speech over the Volcengine websocket protocol.
type TTSClient struct {
	cfg    config.SpeechConfig
	url    string
	dialer *websocket.Dialer
}

// NewTTSClient creates a client for cfg. An empty url selects DefaultTTSURL.
func NewTTSClient(cfg config.SpeechConfig, url string) *TTSClient {
	if url == "" {
		url = DefaultTTSURL
	}
	return &TTSClient{
		cfg: cfg,
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 30 * time.Second,
		},
	}
}

type ttsServerMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
	Addition struct {
		Duration string `json:"duration,omitempty"`
	} `json:"addition,omitempty"`
}

type ttsRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string         `json:"speaker"`
		Text        string         `json:"text"`
		AudioParams ttsAudioParams `json:"audio_params"`
		Additions   string         `json:"additions,omitempty"`
		Language    string         `json:"language,omitempty"`
	} `json:"req_params"`
}

type ttsAudioParams struct {
	Format      string  `json:"format"`
	SampleRate  int     `json:"sample_rate"`
	SpeedRatio  float32 `json:"speed_ratio,omitempty"`
	VolumeRatio float32 `json:"volume_ratio,omitempty"`
}

// Synthesize converts req.Text to audio. When the service rejects a voice
// for a resource the next resource, then the configured fallback voice, is tried.
func (c *TTSClient) Synthesize(ctx context.Context, req speech.TTSRequest) (*speech.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("tts text is empty")
	}
	if !c.cfg.Enabled {
		return nil, ErrSpeechDisabled
	}

	format := strings.TrimSpace(req.Format)
	if format == "" || format == "wav" {
		format = "mp3"
	}

	speakers := speakerCandidates(req.Voice, c.cfg.Voice)
	var lastMismatch error

	for _, speaker := range speakers {
		for _, resourceID := range resourceCandidates(speaker) {
			resp, err := c.synthesizeWithResource(ctx, req, speaker, format, resourceID)
			if err == nil {
				return resp, nil
			}
			if !isResourceMismatch(err) {
				return nil, err
			}
			log.Warn().
				Str("component", "speech").
				Str("voice", speaker).
				Str("resource", resourceID).
				Err(err).
				Msg("voice rejected for resource")
			lastMismatch = err
		}
	}

	if lastMismatch != nil {
		return nil, lastMismatch
	}
	return nil, errors.Errorf("tts synthesis failed for voices %v", speakers)
}

func (c *TTSClient) synthesizeWithResource(ctx context.Context, req speech.TTSRequest, speaker, format, resourceID string) (*speech.TTSResponse, error) {
	connectID := uuid.NewString()

	header := http.Header{}
	header.Set("X-Api-App-Key", c.cfg.AppID)
	header.Set("X-Api-Access-Key", c.cfg.AccessToken)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, httpResp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return nil, errors.Wrap(err, "connect tts websocket")
	}
	defer conn.Close()

	if httpResp != nil {
		if logID := httpResp.Header.Get("X-Tt-Logid"); logID != "" {
			log.Debug().Str("component", "speech").Str("logid", logID).Msg("tts connected")
		}
	}

	// unblock ReadMessage when the caller gives up
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	payload, err := json.Marshal(c.buildRequest(req, speaker, format))
	if err != nil {
		return nil, errors.Wrap(err, "marshal tts request")
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, EncodeMessage(NewFullClientRequest(payload, NoCompression))); err != nil {
		return nil, errors.Wrap(err, "send tts request")
	}

	var (
		audio    bytes.Buffer
		reqID    string
		duration int64
	)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errors.Wrap(err, "read tts response")
		}

		msg, err := DecodeMessage(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "decode tts frame")
		}

		body, err := DecompressPayload(msg.Payload, msg.Header.CompressionMethod)
		if err != nil {
			return nil, errors.Wrap(err, "decompress tts payload")
		}

		switch msg.Header.MessageType {
		case ErrorMessage:
			return nil, errors.Errorf("tts error %d: %s", msg.ErrorCode, string(body))

		case AudioOnlyServerResponse:
			audio.Write(body)
			if !msg.IsLastPacket() {
				continue
			}

		case FullServerResponse:
			var serverResp ttsServerMessage
			if len(body) > 0 {
				if err := json.Unmarshal(body, &serverResp); err != nil {
					log.Debug().Str("component", "speech").Err(err).Msg("unparsed tts payload")
				} else {
					if serverResp.Code != 0 && serverResp.Code != 3000 {
						return nil, errors.Errorf("tts api error %d: %s", serverResp.Code, serverResp.Message)
					}
					if serverResp.ReqID != "" {
						reqID = serverResp.ReqID
					}
					if ms, err := strconv.ParseInt(serverResp.Addition.Duration, 10, 64); err == nil {
						duration = ms
					}
					if serverResp.Data != "" {
						chunk, err := base64.StdEncoding.DecodeString(serverResp.Data)
						if err != nil {
							return nil, errors.Wrap(err, "decode base64 audio chunk")
						}
						audio.Write(chunk)
					}
				}
			}

			finished := msg.hasEvent() && msg.EventType == EventTypeSessionFinished
			if !finished && !msg.IsLastPacket() && serverResp.Sequence >= 0 {
				continue
			}

		default:
			log.Debug().Str("component", "speech").Int("type", int(msg.Header.MessageType)).Msg("unexpected tts frame")
			continue
		}

		if audio.Len() == 0 {
			return nil, errors.New("tts audio is empty")
		}
		if reqID == "" {
			reqID = connectID
		}
		return &speech.TTSResponse{
			AudioData: audio.Bytes(),
			Duration:  duration,
			Format:    format,
			RequestID: reqID,
			CreatedAt: time.Now(),
		}, nil
	}
}

func (c *TTSClient) buildRequest(req speech.TTSRequest, speaker, format string) *ttsRequest {
	r := &ttsRequest{}
	r.User.UID = uuid.NewString()
	r.ReqParams.Speaker = speaker
	r.ReqParams.Text = req.Text
	r.ReqParams.AudioParams.Format = format
	r.ReqParams.AudioParams.SampleRate = 24000

	speed := req.Speed
	if speed <= 0 {
		speed = c.cfg.Speed
	}
	if speed > 0 && speed != 1.0 {
		r.ReqParams.AudioParams.SpeedRatio = speed
	}

	volume := req.Volume
	if volume <= 0 {
		volume = c.cfg.Volume
	}
	if volume > 0 && volume != 1.0 {
		r.ReqParams.AudioParams.VolumeRatio = volume
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = strings.TrimSpace(c.cfg.Language)
	}
	r.ReqParams.Language = language

	// answers are markdown; let the service strip the markup
	r.ReqParams.Additions = `{"disable_markdown_filter":false}`
	return r
}

func resourceCandidates(voice string) []string {
	voice = strings.TrimSpace(voice)
	if strings.HasPrefix(voice, "S_") {
		return []string{resourceMega}
	}

	normalized := strings.ToLower(voice)
	for _, hint := range []string{"bigtts", "seed", "megatts", "uranus", "venus", "jupiter", "saturn", "neptune", "mercury", "pluto", "mars"} {
		if strings.Contains(normalized, hint) {
			return []string{resourceSeed, resourceDefault}
		}
	}
	return []string{resourceDefault, resourceSeed}
}

var voiceAliases = map[string]string{
	"en_default": "en_female_amy_jupiter_bigtts",
	"zh_default": "zh_female_vv_uranus_bigtts",
}

func speakerCandidates(requested, fallback string) []string {
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if mapped, ok := voiceAliases[strings.ToLower(s)]; ok {
			s = mapped
		}
		for _, existing := range out {
			if strings.EqualFold(existing, s) {
				return
			}
		}
		out = append(out, s)
	}
	add(requested)
	add(fallback)
	if len(out) == 0 {
		out = append(out, voiceAliases["en_default"])
	}
	return out
}

func isResourceMismatch(err error) bool {
	return err != nil && strings.Contains(err.Error(), "resource ID is mismatched with speaker related resource")
}
