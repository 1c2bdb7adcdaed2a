package main

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"informer/internal/config"
	"informer/internal/logger"
)

// setupLogging routes the app and LLM logs to their files. The returned
// func closes whatever was opened.
func setupLogging(cfg config.AppConfig) (func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}
	logger.SetLevel(cfg.LogLevel)
	logger.SetLLMWriter(nil)
	if f, err := openLogFile(cfg.LogPath); err != nil {
		return closeAll, err
	} else if f != nil {
		files = append(files, f)
		mw := io.MultiWriter(os.Stderr, f)
		log.SetOutput(mw)
		logger.SetOutput(mw)
	}
	if cfg.LLMDump {
		f, err := openLogFile(cfg.LLMLog)
		if err != nil {
			return closeAll, err
		}
		if f != nil {
			files = append(files, f)
			logger.SetLLMWriter(f)
		}
	}
	logger.EnableLLMPayloadDump(cfg.LLMDump)
	return closeAll, nil
}

func openLogFile(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
