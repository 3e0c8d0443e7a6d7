// Copyright 2025-2026 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package peerip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// MethodConnect names the connect operation of a Conn in the hook registry.
const MethodConnect = "connect"

var (
	// ErrAlreadyInstalled is returned by Install when the instrumentor is installed.
	ErrAlreadyInstalled = errors.New("peerip: already installed")
	// ErrNotInstalled is returned by Uninstall without a matching Install.
	ErrNotInstalled = errors.New("peerip: not installed")
	// ErrHookRegistered is returned when a connect hook is registered twice.
	ErrHookRegistered = errors.New("peerip: connect hook already registered")
	// ErrHookNotRegistered is returned when removing an unknown connect hook.
	ErrHookNotRegistered = errors.New("peerip: connect hook not registered")
	// ErrEmptyKind is returned when a connect hook names no connection kind.
	ErrEmptyKind = errors.New("peerip: empty connection kind")
)

type hookKey struct {
	kind   string
	method string
}

func (k hookKey) String() string { return k.kind + "." + k.method }

// Instrumentor is a registry of peer-IP interceptors applied to connections
// when they are wrapped. Wrapped connections consult the registry on every
// call, so Install and Uninstall take effect on connections wrapped before
// them. An Instrumentor is safe for concurrent use.
type Instrumentor struct {
	cfg     *config
	metrics *captureMetrics

	mu           sync.RWMutex
	installed    bool
	sendHooked   bool
	hooks        map[hookKey]struct{}
	installHooks []hookKey
}

// New returns an Instrumentor with no interceptors enabled. Call Install to
// enable them.
func New(opts ...Option) *Instrumentor {
	cfg := applyOptions(opts)
	return &Instrumentor{
		cfg:     cfg,
		metrics: newCaptureMetrics(cfg.meterProvider),
		hooks:   make(map[hookKey]struct{}),
	}
}

var (
	defaultOnce         sync.Once
	defaultInstrumentor *Instrumentor
)

// Default returns the process-wide Instrumentor used by the package-level
// functions.
func Default() *Instrumentor {
	defaultOnce.Do(func() {
		defaultInstrumentor = New()
	})
	return defaultInstrumentor
}

// Install enables the peer-IP interceptors on the default Instrumentor.
func Install() error { return Default().Install() }

// Uninstall removes what Install enabled on the default Instrumentor.
func Uninstall() error { return Default().Uninstall() }

// RegisterConnectHook registers a connect hook on the default Instrumentor.
func RegisterConnectHook(kind, method string) error {
	return Default().RegisterConnectHook(kind, method)
}

// Install enables the send interceptor and the connect interceptors for the
// built-in connection kinds. Kinds already registered through
// RegisterConnectHook are left alone and survive Uninstall.
func (i *Instrumentor) Install() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.installed {
		return ErrAlreadyInstalled
	}
	i.installed = true
	i.sendHooked = true
	i.installHooks = i.installHooks[:0]
	for _, kind := range []string{KindStream, KindTLS} {
		key := hookKey{kind: kind, method: MethodConnect}
		if _, ok := i.hooks[key]; ok {
			continue
		}
		i.hooks[key] = struct{}{}
		i.installHooks = append(i.installHooks, key)
	}
	return nil
}

// Uninstall disables exactly the interceptors Install enabled, restoring
// the original behaviour of wrapped connections.
func (i *Instrumentor) Uninstall() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.installed {
		return ErrNotInstalled
	}
	for _, key := range i.installHooks {
		delete(i.hooks, key)
	}
	i.installHooks = nil
	i.sendHooked = false
	i.installed = false
	return nil
}

// Installed reports whether Install has been called without a matching
// Uninstall.
func (i *Instrumentor) Installed() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.installed
}

// RegisterConnectHook enables the connect interceptor for connections of
// kind whose connect operation is named method. An empty method means
// MethodConnect. Use it for connection types that implement their own
// connect instead of delegating to a built-in one; the capture logic is
// shared. Hooks work independently of Install.
func (i *Instrumentor) RegisterConnectHook(kind, method string) error {
	key, err := newHookKey(kind, method)
	if err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.hooks[key]; ok {
		return fmt.Errorf("register %s: %w", key, ErrHookRegistered)
	}
	i.hooks[key] = struct{}{}
	return nil
}

// UnregisterConnectHook removes a hook added with RegisterConnectHook.
func (i *Instrumentor) UnregisterConnectHook(kind, method string) error {
	key, err := newHookKey(kind, method)
	if err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.hooks[key]; !ok {
		return fmt.Errorf("unregister %s: %w", key, ErrHookNotRegistered)
	}
	delete(i.hooks, key)
	for n, k := range i.installHooks {
		if k == key {
			i.installHooks = append(i.installHooks[:n], i.installHooks[n+1:]...)
			break
		}
	}
	return nil
}

// newHookKey validates and normalizes a hook registration.
func newHookKey(kind, method string) (hookKey, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return hookKey{}, ErrEmptyKind
	}
	method = strings.TrimSpace(method)
	if method == "" {
		method = MethodConnect
	}
	return hookKey{kind: kind, method: method}, nil
}

// connectHooked reports whether the connect interceptor applies to kind.
func (i *Instrumentor) connectHooked(kind, method string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.hooks[hookKey{kind: kind, method: method}]
	return ok
}

// isSendHooked reports whether the send interceptor is enabled.
func (i *Instrumentor) isSendHooked() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.sendHooked
}

// ConnectFunc establishes a connection.
type ConnectFunc func(ctx context.Context) error

// WrapConnect returns a ConnectFunc that runs connect and then, when a hook
// for kind and method is enabled, captures the peer IP of h at the failure
// level. A failed connect is returned untouched and triggers no capture.
func (i *Instrumentor) WrapConnect(kind, method string, h Handle, connect ConnectFunc) ConnectFunc {
	if method == "" {
		method = MethodConnect
	}
	return func(ctx context.Context) error {
		if err := connect(ctx); err != nil {
			return err
		}
		if i.connectHooked(kind, method) {
			i.TryCapturePeerIP(ctx, h, i.cfg.failureLevel)
		}
		return nil
	}
}

// SendFunc writes a request on a connection, connecting first when needed.
type SendFunc func(ctx context.Context, p []byte) error

// WrapSend returns a SendFunc that tries a capture before delegating, to
// catch connections that are already open, and tries again at the failure
// level after send when the first attempt found no socket.
func (i *Instrumentor) WrapSend(h Handle, send SendFunc) SendFunc {
	return func(ctx context.Context, p []byte) error {
		if !i.isSendHooked() {
			return send(ctx, p)
		}
		done := i.TryCapturePeerIP(ctx, h, slog.LevelDebug)
		if err := send(ctx, p); err != nil {
			return err
		}
		if !done {
			i.TryCapturePeerIP(ctx, h, i.cfg.failureLevel)
		}
		return nil
	}
}

// FailureLevel returns the severity used for post-connection captures.
func (i *Instrumentor) FailureLevel() slog.Level {
	return i.cfg.failureLevel
}
