package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robalyx/draftguard/internal/setup/config"
	"github.com/robalyx/draftguard/internal/setup/telemetry/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceType represents the type of service being initialized.
type ServiceType int

const (
	ServiceAPI ServiceType = iota
	ServiceWorker
	ServiceCLI
)

// String returns the component name of the service.
func (s ServiceType) String() string {
	switch s {
	case ServiceAPI:
		return "api"
	case ServiceWorker:
		return "worker"
	case ServiceCLI:
		return "cli"
	default:
		return "unknown"
	}
}

// sessionLayout names session directories so they sort chronologically.
const sessionLayout = "2006-01-02_15-04-05"

// Manager handles the creation and management of log files and directories.
// Every process run gets its own timestamped session directory.
type Manager struct {
	instanceID    string
	componentName string
	logDir        string
	level         string
	maxLogsToKeep int
	maxLogLines   int

	mu         sync.Mutex
	sessionDir string
	rotators   []*logger.LogRotator
}

// NewManager creates a new Manager instance.
func NewManager(serviceType ServiceType, logDir string, debugCfg *config.Debug, workerType string) *Manager {
	componentName := serviceType.String()
	if serviceType == ServiceWorker && workerType != "" {
		componentName = workerType + "_worker"
	}

	return &Manager{
		instanceID:    uuid.New().String(),
		componentName: componentName,
		logDir:        logDir,
		level:         debugCfg.LogLevel,
		maxLogsToKeep: debugCfg.MaxLogsToKeep,
		maxLogLines:   debugCfg.MaxLogLines,
	}
}

// GetInstanceID returns the unique instance identifier for this program run.
func (lm *Manager) GetInstanceID() string {
	return lm.instanceID
}

// GetComponentName returns the component the manager logs for.
func (lm *Manager) GetComponentName() string {
	return lm.componentName
}

// GetLoggers initializes the main and database loggers.
func (lm *Manager) GetLoggers() (*zap.Logger, *zap.Logger, error) {
	sessionDir, err := lm.session()
	if err != nil {
		return nil, nil, err
	}

	mainLogger, err := lm.initLogger(filepath.Join(sessionDir, "main.log"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize main logger: %w", err)
	}

	dbLogger, err := lm.initLogger(filepath.Join(sessionDir, "database.log"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database logger: %w", err)
	}

	return mainLogger, dbLogger, nil
}

// GetWorkerLogger creates a logger for one background worker in its own file.
// It falls back to a no-op logger when the file cannot be opened.
func (lm *Manager) GetWorkerLogger(name string) *zap.Logger {
	sessionDir, err := lm.session()
	if err != nil {
		return zap.NewNop()
	}

	log, err := lm.initLogger(filepath.Join(sessionDir, name+".log"))
	if err != nil {
		return zap.NewNop()
	}

	return log.With(zap.String("instanceID", lm.instanceID))
}

// Close closes every log file opened by the manager.
func (lm *Manager) Close() {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	for _, r := range lm.rotators {
		_ = r.Sync()
		_ = r.Close()
	}
	lm.rotators = nil
}

// session returns the session directory, creating it and pruning old sessions on first use.
func (lm *Manager) session() (string, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if lm.sessionDir != "" {
		return lm.sessionDir, nil
	}

	if err := os.MkdirAll(lm.logDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create logs directory: %w", err)
	}

	if err := lm.pruneSessions(); err != nil {
		return "", fmt.Errorf("failed to rotate log sessions: %w", err)
	}

	dir := filepath.Join(lm.logDir, time.Now().Format(sessionLayout)+"_"+lm.componentName)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create session directory: %w", err)
	}

	lm.sessionDir = dir
	return dir, nil
}

// pruneSessions removes the oldest sessions so a new one fits within maxLogsToKeep.
func (lm *Manager) pruneSessions() error {
	sessions, err := filepath.Glob(filepath.Join(lm.logDir, "*"))
	if err != nil {
		return err
	}

	if len(sessions) < lm.maxLogsToKeep {
		return nil
	}

	// Names start with the session timestamp
	slices.Sort(sessions)

	for _, dir := range sessions[:len(sessions)-lm.maxLogsToKeep+1] {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}

	return nil
}

// initLogger creates a zap logger writing to a rotated file and forwarding errors to OpenTelemetry.
func (lm *Manager) initLogger(path string) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(lm.level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	rotator, err := logger.NewLogRotator(path, lm.maxLogLines)
	if err != nil {
		return nil, err
	}

	lm.mu.Lock()
	lm.rotators = append(lm.rotators, rotator)
	lm.mu.Unlock()

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	fileCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(rotator),
		zapLevel,
	)

	return zap.New(
		zapcore.NewTee(fileCore, NewCore(zapcore.ErrorLevel)),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("component", lm.componentName)),
	), nil
}
