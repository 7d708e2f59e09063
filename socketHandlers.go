package main

import (
	"context"
	"encoding/base64"
	"log"
	"log/slog"
	"os"
	"strings"

	socketio "github.com/googollee/go-socket.io"
	"github.com/mdobak/go-xerrors"

	"elephant-logger/chat"
	"elephant-logger/dataset"
	"elephant-logger/db"
	"elephant-logger/detections"
	"elephant-logger/models"
	"elephant-logger/monitor"
	"elephant-logger/telemetry"
	"elephant-logger/tts"
	"elephant-logger/utils"
)

type socketController struct {
	store   db.DBClient
	buffer  *dataset.Buffer
	session *monitor.Session
	server  *socketio.Server

	gemini    *chat.GeminiClient
	ttsClient *tts.GoogleTTSClient
}

func newSocketController(store db.DBClient, buffer *dataset.Buffer) *socketController {
	c := &socketController{store: store, buffer: buffer}

	if os.Getenv("GEMINI_API_KEY") != "" {
		gemini, err := chat.NewGeminiClient()
		if err != nil {
			log.Printf("chat assistant disabled: %v", err)
		} else {
			c.gemini = gemini
		}
	}

	if strings.EqualFold(utils.GetEnv("TTS_ALERTS", "false"), "true") {
		ttsClient, err := tts.NewGoogleTTSClient()
		if err != nil {
			log.Printf("spoken alerts disabled: %v", err)
		} else {
			c.ttsClient = ttsClient
		}
	}

	return c
}

// handlers bridges session output onto the socket.io namespace. The snapshot
// broadcast happens inline; persistence and speech synthesis move off the
// session goroutine.
func (c *socketController) handlers() monitor.Handlers {
	return monitor.Handlers{
		OnSnapshot: func(snapshot monitor.Snapshot) {
			c.server.BroadcastToNamespace("/", "displayState", snapshot)
		},
		OnDetection: func(detection models.Detection) {
			c.server.BroadcastToNamespace("/", "detection", detection)
			go c.persistDetection(detection)
			if c.ttsClient != nil && detection.Tier == "high" {
				go c.announceDetection(detection)
			}
		},
		OnStatus: func(status models.DeviceStatus) {
			c.server.BroadcastToNamespace("/", "deviceStatus", status)
		},
		OnProtocol: func(msg telemetry.Message) {
			c.server.BroadcastToNamespace("/", "protocol", map[string]string{
				"kind": msg.Kind.String(),
				"raw":  msg.Raw,
			})
		},
	}
}

func (c *socketController) persistDetection(detection models.Detection) {
	logger := utils.GetLogger()
	ctx := context.Background()

	if err := detections.SaveDetection(&detection); err != nil {
		logger.ErrorContext(ctx, "failed to save detection",
			slog.Any("error", xerrors.New(err)))
	}
	if c.store != nil {
		if err := c.store.StoreDetection(&detection); err != nil {
			logger.ErrorContext(ctx, "failed to store detection",
				slog.Any("error", xerrors.New(err)))
		}
	}
}

func (c *socketController) announceDetection(detection models.Detection) {
	audio, err := c.ttsClient.SynthesizeText(tts.AlertPhrase(detection.Tier))
	if err != nil {
		log.Printf("alert synthesis failed: %v", err)
		return
	}
	c.server.BroadcastToNamespace("/", "alertAudio", map[string]string{
		"tier":  detection.Tier,
		"audio": base64.StdEncoding.EncodeToString(audio),
	})
}

func (c *socketController) label(label string) error {
	if err := c.session.Label(label); err != nil {
		return err
	}
	c.server.BroadcastToNamespace("/", "labeled", map[string]interface{}{
		"label":   label,
		"samples": c.buffer.Len(),
	})
	return nil
}

// saveData forwards SAVE_DATA to the device and flushes the labeling buffer
// to the database and the training CSV.
func (c *socketController) saveData() error {
	if err := c.session.SaveData(); err != nil {
		return err
	}

	samples := c.buffer.Samples()
	if len(samples) == 0 {
		return nil
	}

	if c.store != nil {
		if err := c.store.StoreLabeledSamples(samples); err != nil {
			return err
		}
	}

	path := utils.GetEnv("TRAINING_DATA_PATH", "data/training_data.csv")
	if err := dataset.WriteFile(path, samples); err != nil {
		return err
	}
	log.Printf("saved %d labeled samples to %s", len(samples), path)
	return nil
}

func (c *socketController) handleChatMessage(socket socketio.Conn, message string) {
	logger := utils.GetLogger()
	ctx := context.Background()

	if c.gemini == nil {
		socket.Emit("chatError", map[string]string{"message": "chat assistant is not configured"})
		return
	}
	if strings.TrimSpace(message) == "" {
		socket.Emit("chatError", map[string]string{"message": "empty message"})
		return
	}

	var recent []models.Detection
	if c.store != nil {
		if list, err := c.store.GetRecentDetections(5); err == nil {
			recent = list
		}
	}

	err := c.gemini.GenerateResponseStream(message, recent, func(chunk string) error {
		socket.Emit("chatResponseChunk", chunk)
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "chat generation failed", slog.Any("error", xerrors.New(err)))
		socket.Emit("chatError", map[string]string{"message": "failed to generate response"})
		return
	}
	socket.Emit("chatResponseDone", "")
}

func registerSocketHandlers(server *socketio.Server, controller *socketController) {
	server.OnConnect("/", func(socket socketio.Conn) error {
		socket.SetContext("")
		connURL := socket.URL()
		log.Printf("CONNECTED: %s, transport: %s, remote addr: %s\n", socket.ID(), connURL.String(), socket.RemoteAddr())
		socket.Emit("sessionInfo", controller.session.Stats())
		return nil
	})

	server.OnEvent("/", "requestSession", func(socket socketio.Conn) {
		socket.Emit("sessionInfo", controller.session.Stats())
	})

	server.OnEvent("/", "label", func(socket socketio.Conn, label string) {
		if err := controller.label(label); err != nil {
			socket.Emit("commandError", map[string]string{"message": err.Error()})
		}
	})

	server.OnEvent("/", "saveData", func(socket socketio.Conn) {
		if err := controller.saveData(); err != nil {
			socket.Emit("commandError", map[string]string{"message": err.Error()})
		}
	})

	server.OnEvent("/", "clearData", func(socket socketio.Conn) {
		if err := controller.session.ClearData(); err != nil {
			socket.Emit("commandError", map[string]string{"message": err.Error()})
		}
	})

	server.OnEvent("/", "requestStatus", func(socket socketio.Conn) {
		if err := controller.session.RequestStatus(); err != nil {
			socket.Emit("commandError", map[string]string{"message": err.Error()})
		}
	})

	server.OnEvent("/", "chatMessage", func(socket socketio.Conn, message string) {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("panic in handleChatMessage for socket %s: %v\n", socket.ID(), r)
					socket.Emit("chatError", map[string]string{"message": "internal server error"})
				}
			}()
			controller.handleChatMessage(socket, message)
		}()
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		log.Println("meet error:", e)
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Printf("Socket disconnected - ID: %s, Reason: %s\n", s.ID(), reason)
	})
}
