// Copyright 2016 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"go.uber.org/zap"
)

var nopLog = zap.NewNop().Sugar()

// NewLogger builds the logger used by the directory server. Debug
// switches to human-readable output with debug-level messages.
func NewLogger(debug bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func (s *Server) logger() *zap.SugaredLogger {
	if s.Log == nil {
		return nopLog
	}
	return s.Log
}

func (s *Server) log(subsystem, format string, args ...interface{}) {
	s.logger().With("subsystem", subsystem).Infof(format, args...)
}

func (s *Server) warn(subsystem, format string, args ...interface{}) {
	s.logger().With("subsystem", subsystem).Warnf(format, args...)
}
