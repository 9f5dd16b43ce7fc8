package tts

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"

	ttsv3 "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/tts/v3"

	"github.com/osa030/readaloud/internal/domain/speech"
)

const (
	// YandexEndpoint is the SpeechKit v3 gRPC endpoint.
	YandexEndpoint = "tts.api.cloud.yandex.net:443"

	yandexMinSpeed = 0.1
	yandexMaxSpeed = 3.0
)

// YandexConfig holds SpeechKit settings.
type YandexConfig struct {
	APIKey   string  `mapstructure:"api_key" validate:"required"`
	FolderID string  `mapstructure:"folder_id" validate:"required"`
	Endpoint string  `mapstructure:"endpoint" default:"tts.api.cloud.yandex.net:443"`
	Voice    string  `mapstructure:"voice" default:"marina"`
	Model    string  `mapstructure:"model" default:"general"`
	Format   string  `mapstructure:"format" default:"wav" validate:"oneof=wav mp3"`
	Volume   float64 `mapstructure:"volume"`
}

// Yandex synthesizes speech with Yandex SpeechKit over gRPC.
type Yandex struct {
	client ttsv3.SynthesizerClient
	conn   *grpc.ClientConn
	config YandexConfig
}

// NewYandex creates a SpeechKit synthesizer from provider settings.
// The connection is established lazily on the first request.
func NewYandex(settings map[string]any) (*Yandex, error) {
	var cfg YandexConfig
	if err := decodeSettings(settings, &cfg); err != nil {
		return nil, err
	}

	creds := credentials.NewTLS(&tls.Config{})
	conn, err := grpc.NewClient(cfg.Endpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create SpeechKit client")
	}

	return &Yandex{
		client: ttsv3.NewSynthesizerClient(conn),
		conn:   conn,
		config: cfg,
	}, nil
}

// Name returns the engine identifier.
func (y *Yandex) Name() string {
	return "yandex"
}

// Synthesize converts text to audio, collecting the streamed chunks.
func (y *Yandex) Synthesize(ctx context.Context, req speech.Request) (*speech.Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	ctx = metadata.AppendToOutgoingContext(ctx,
		"authorization", "Api-Key "+y.config.APIKey,
		"x-folder-id", y.config.FolderID,
	)

	stream, err := y.client.UtteranceSynthesis(ctx, y.buildRequest(req))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to start synthesis"), ErrSynthesisFailed)
	}

	var buf bytes.Buffer
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errors.Mark(errors.Wrap(err, "failed to receive audio data"), ErrSynthesisFailed)
		}
		if chunk := resp.GetAudioChunk(); chunk != nil {
			buf.Write(chunk.GetData())
		}
	}
	if buf.Len() == 0 {
		return nil, errors.Wrap(ErrSynthesisFailed, "yandex: no audio output")
	}

	zlog.Debug().Msgf("yandex: synthesized: rate=%d format=%s bytes=%d", req.Rate, y.config.Format, buf.Len())
	return &speech.Audio{
		Data:   buf.Bytes(),
		Format: speech.Format(y.config.Format),
		Engine: y.Name(),
	}, nil
}

func (y *Yandex) buildRequest(req speech.Request) *ttsv3.UtteranceSynthesisRequest {
	r := &ttsv3.UtteranceSynthesisRequest{}
	r.SetModel(y.config.Model)
	r.SetText(req.Text)

	voice := req.Voice
	if voice == "" {
		voice = y.config.Voice
	}
	voiceHint := &ttsv3.Hints{}
	voiceHint.SetVoice(voice)

	speedHint := &ttsv3.Hints{}
	speedHint.SetSpeed(yandexSpeed(req))

	volumeHint := &ttsv3.Hints{}
	volumeHint.SetVolume(y.config.Volume)

	r.SetHints([]*ttsv3.Hints{voiceHint, speedHint, volumeHint})

	container := &ttsv3.ContainerAudio{}
	if y.config.Format == string(speech.FormatMP3) {
		container.SetContainerAudioType(ttsv3.ContainerAudio_MP3)
	} else {
		container.SetContainerAudioType(ttsv3.ContainerAudio_WAV)
	}
	spec := &ttsv3.AudioFormatOptions{}
	spec.SetContainerAudio(container)
	r.SetOutputAudioSpec(spec)

	r.SetLoudnessNormalizationType(ttsv3.UtteranceSynthesisRequest_LUFS)
	return r
}

// Close closes the gRPC connection.
func (y *Yandex) Close() error {
	return y.conn.Close()
}

// yandexSpeed maps words per minute to SpeechKit's speed multiplier.
func yandexSpeed(req speech.Request) float64 {
	speed := req.SpeedFactor()
	if speed < yandexMinSpeed {
		return yandexMinSpeed
	}
	if speed > yandexMaxSpeed {
		return yandexMaxSpeed
	}
	return speed
}
