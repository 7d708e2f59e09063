package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/mdobak/go-xerrors"

	"elephant-logger/alert"
	"elephant-logger/dataset"
	"elephant-logger/db"
	"elephant-logger/detections"
	"elephant-logger/device"
	"elephant-logger/monitor"
	"elephant-logger/utils"
)

type apiError struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Message: message})
}

func corsPreflight(w http.ResponseWriter, r *http.Request, methods string) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", methods+", OPTIONS")
	w.Header().Set("Access-Control-Allow-Credentials", "true")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

func newDetectionsHandler(store db.DBClient) http.HandlerFunc {
	logger := utils.GetLogger()
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.Background()

		if corsPreflight(w, r, "GET") {
			return
		}
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		if store != nil {
			if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
				limit, err := strconv.Atoi(limitStr)
				if err != nil || limit <= 0 {
					writeJSONError(w, http.StatusBadRequest, "invalid limit")
					return
				}
				list, err := store.GetRecentDetections(limit)
				if err != nil {
					logger.ErrorContext(ctx, "failed to load detections", slog.Any("error", err))
					writeJSONError(w, http.StatusInternalServerError, "failed to load detections")
					return
				}
				writeJSON(w, http.StatusOK, list)
				return
			}
			list, err := store.GetAllDetections()
			if err != nil {
				logger.ErrorContext(ctx, "failed to load detections", slog.Any("error", err))
				writeJSONError(w, http.StatusInternalServerError, "failed to load detections")
				return
			}
			writeJSON(w, http.StatusOK, list)
			return
		}

		detectionsList, err := detections.LoadDetections()
		if err != nil {
			logger.ErrorContext(ctx, "failed to load detections", slog.Any("error", err))
			writeJSONError(w, http.StatusInternalServerError, "failed to load detections")
			return
		}
		writeJSON(w, http.StatusOK, detectionsList)
	}
}

func newSessionHandler(session *monitor.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if corsPreflight(w, r, "GET") {
			return
		}
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, session.Stats())
	}
}

func newLabelHandler(controller *socketController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if corsPreflight(w, r, "POST") {
			return
		}
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var payload struct {
			Label string `json:"label"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid label payload")
			return
		}
		if err := controller.label(payload.Label); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "labeled"})
	}
}

func newDeviceCommandHandler(run func() error, status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if corsPreflight(w, r, "POST") {
			return
		}
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if err := run(); err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": status})
	}
}

func newExportHandler(buffer *dataset.Buffer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if corsPreflight(w, r, "GET") {
			return
		}
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="training_data.csv"`)
		if err := dataset.Write(w, buffer.Samples()); err != nil {
			log.Printf("failed to stream training data export: %v", err)
		}
	}
}

// listPorts prints serial port candidates most-likely-device first.
func listPorts() {
	candidates, err := device.ScanPorts()
	if err != nil {
		log.Fatalf("failed to scan serial ports: %v", err)
	}
	if len(candidates) == 0 {
		fmt.Println("No candidate serial ports found.")
		return
	}
	for _, c := range candidates {
		fmt.Printf("%-20s score=%d vid=%s pid=%s %s\n", c.Name, c.Score, c.VID, c.PID, c.Product)
	}
}

func buildDebouncer() *alert.Debouncer {
	cfg := alert.DefaultConfig()

	if dwellStr := utils.GetEnv("ALERT_DWELL_MS", ""); dwellStr != "" {
		ms, err := strconv.Atoi(dwellStr)
		if err != nil || ms <= 0 {
			log.Fatalf("invalid ALERT_DWELL_MS value '%s'", dwellStr)
		}
		cfg.DwellDuration = time.Duration(ms) * time.Millisecond
	}
	cfg.PositiveLabel = utils.GetEnv("ALERT_POSITIVE_LABEL", cfg.PositiveLabel)
	if strings.EqualFold(utils.GetEnv("ALERT_TWO_TIER", "false"), "true") {
		two := alert.TwoTierConfig()
		two.DwellDuration = cfg.DwellDuration
		two.PositiveLabel = cfg.PositiveLabel
		cfg = two
	}

	debouncer, err := alert.NewDebouncer(cfg)
	if err != nil {
		log.Fatalf("invalid alert configuration: %v", err)
	}
	return debouncer
}

func serve(protocol, port, serialPort string) {
	ctx := context.Background()
	logger := utils.GetLogger()

	var serialConn device.Port
	var err error
	if addr, ok := strings.CutPrefix(serialPort, "tcp:"); ok {
		// A mock device or remote serial bridge speaks the same protocol
		// over TCP.
		serialConn, err = net.Dial("tcp", addr)
		if err != nil {
			log.Fatalf("failed to connect to %s: %v", addr, err)
		}
		log.Printf("Connected to device bridge at %s", addr)
	} else {
		if serialPort == "auto" {
			detected, derr := device.AutoDetect()
			if derr != nil {
				log.Fatalf("serial auto-detect failed: %v", derr)
			}
			log.Printf("Auto-detected serial port %s", detected)
			serialPort = detected
		}
		serialConn, err = device.Open(serialPort)
		if err != nil {
			log.Fatalf("failed to open serial port: %v", err)
		}
	}

	deviceSession := device.NewSession(ctx, serialConn)
	defer deviceSession.Close()

	var store db.DBClient
	if strings.EqualFold(utils.GetEnv("DB_PERSIST", "true"), "true") {
		store, err = db.NewDBClient()
		if err != nil {
			logger.ErrorContext(ctx, "database unavailable, falling back to JSON log",
				slog.Any("error", xerrors.New(err)))
			store = nil
		} else {
			defer store.Close()
		}
	}

	buffer := dataset.NewBuffer()
	controller := newSocketController(store, buffer)
	session := monitor.NewSession(buildDebouncer(), deviceSession, buffer, controller.handlers())
	controller.session = session

	var allowOriginFunc = func(r *http.Request) bool {
		return true
	}

	server := socketio.NewServer(&engineio.Options{
		PingTimeout:  60 * time.Second,
		PingInterval: 25 * time.Second,
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: allowOriginFunc,
			},
			&polling.Transport{
				CheckOrigin: allowOriginFunc,
			},
		},
	})
	controller.server = server
	registerSocketHandlers(server, controller)

	go func() {
		if err := server.Serve(); err != nil {
			log.Fatalf("socketio listen error: %s\n", err)
		}
	}()
	defer server.Close()

	go session.Run(ctx, deviceSession.Messages())
	go func() {
		for err := range deviceSession.Errs() {
			logger.ErrorContext(ctx, "serial session error", slog.Any("error", xerrors.New(err)))
		}
	}()

	serveHTTPS := protocol == "https"

	mux := http.NewServeMux()
	mux.Handle("/socket.io/", server)
	mux.HandleFunc("/api/detections", newDetectionsHandler(store))
	mux.HandleFunc("/api/session", newSessionHandler(session))
	mux.HandleFunc("/api/label", newLabelHandler(controller))
	mux.HandleFunc("/api/device/save", newDeviceCommandHandler(controller.saveData, "saved"))
	mux.HandleFunc("/api/device/clear", newDeviceCommandHandler(session.ClearData, "cleared"))
	mux.HandleFunc("/api/export", newExportHandler(buffer))
	mux.Handle("/", http.FileServer(http.Dir("static")))

	serveHTTP(server, serveHTTPS, port, mux)
}

func serveHTTP(socketServer *socketio.Server, serveHTTPS bool, port string, handler http.Handler) {
	if handler == nil {
		handler = socketServer
	}
	if serveHTTPS {
		httpsAddr := ":" + port
		httpsServer := &http.Server{
			Addr: httpsAddr,
			TLSConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			Handler: handler,
		}

		cert_key := utils.GetEnv("CERT_KEY", "")
		cert_file := utils.GetEnv("CERT_FILE", "")
		if cert_key == "" || cert_file == "" {
			log.Fatal("Missing cert")
		}

		log.Printf("Starting HTTPS server on %s\n", httpsAddr)
		if err := httpsServer.ListenAndServeTLS(cert_file, cert_key); err != nil {
			log.Fatalf("HTTPS server ListenAndServeTLS: %v", err)
		}
	}

	log.Printf("Starting HTTP server on port %v", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("HTTP server ListenAndServe: %v", err)
	}
}
