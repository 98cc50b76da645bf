package agent

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aarzilli/golua/lua"
	"github.com/sirupsen/logrus"
)

// ScriptError describes a failure inside the agent script.
type ScriptError struct {
	Type    string // "syntax", "runtime", "api"
	Message string
	Line    int
	Source  string
}

func (e *ScriptError) Error() string {
	parts := []string{}
	if e.Source != "" {
		parts = append(parts, fmt.Sprintf("in %s", e.Source))
	}
	if e.Line > 0 {
		parts = append(parts, fmt.Sprintf("line %d", e.Line))
	}

	prefix := "Lua error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("Lua %s error (%s)", e.Type, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Is matches script errors by type.
func (e *ScriptError) Is(target error) bool {
	var se *ScriptError
	if errors.As(target, &se) {
		return e.Type == se.Type
	}
	return false
}

var (
	ErrSyntax  = &ScriptError{Type: "syntax"}
	ErrRuntime = &ScriptError{Type: "runtime"}
	ErrAPI     = &ScriptError{Type: "api"}
)

// engine owns one Lua state. golua states are not goroutine safe, every
// access goes through withState.
type engine struct {
	mu     sync.Mutex
	state  *lua.State
	logger *logrus.Logger
	source string
}

func newEngine(logger *logrus.Logger) *engine {
	e := &engine{logger: logger}
	e.state = lua.NewState()
	e.state.OpenLibs()
	e.registerPrint()
	return e
}

func (e *engine) withState(fn func(L *lua.State) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == nil {
		return &ScriptError{Type: "api", Message: "engine closed", Source: e.source}
	}
	return fn(e.state)
}

// registerPrint sends script output to the logger.
func (e *engine) registerPrint() {
	e.state.PushGoFunction(func(L *lua.State) int {
		top := L.GetTop()
		parts := make([]string, 0, top)
		for i := 1; i <= top; i++ {
			parts = append(parts, valueString(L, i))
		}
		e.logger.WithField("script", e.source).Info(strings.Join(parts, "\t"))
		return 0
	})
	e.state.SetGlobal("print")
}

func valueString(L *lua.State, i int) string {
	switch L.Type(i) {
	case lua.LUA_TNIL:
		return "nil"
	case lua.LUA_TBOOLEAN:
		if L.ToBoolean(i) {
			return "true"
		}
		return "false"
	case lua.LUA_TNUMBER, lua.LUA_TSTRING:
		return L.ToString(i)
	default:
		L.GetGlobal("tostring")
		L.PushValue(i)
		L.Call(1, 1)
		s := L.ToString(-1)
		L.Pop(1)
		return s
	}
}

// parseError pops the error message left by a failed load or call.
func parseError(L *lua.State, errType, source string) *ScriptError {
	if L.GetTop() == 0 {
		return &ScriptError{Type: errType, Message: "unknown Lua error", Source: source}
	}

	msg := "non-string error object"
	if L.IsString(-1) {
		msg = L.ToString(-1)
	}
	L.Pop(1)

	return splitMessage(errType, source, msg)
}

// splitMessage pulls the line number out of "chunk:LINE: message".
func splitMessage(errType, source, msg string) *ScriptError {
	line := 0
	message := msg
	parts := strings.SplitN(msg, ":", 3)
	if len(parts) == 3 {
		if n, err := fmt.Sscanf(strings.TrimSpace(parts[1]), "%d", &line); err == nil && n == 1 {
			message = strings.TrimSpace(parts[2])
		}
	}
	return &ScriptError{Type: errType, Message: message, Line: line, Source: source}
}

func (e *engine) loadFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script %s: %w", path, err)
	}
	return e.load(string(content), path)
}

// load compiles and runs script once, defining its functions.
func (e *engine) load(script, source string) error {
	if strings.TrimSpace(script) == "" {
		return &ScriptError{Type: "api", Message: "empty script", Source: source}
	}
	e.source = source

	return e.withState(func(L *lua.State) error {
		defer L.SetTop(L.GetTop())
		if status := L.LoadString(script); status != 0 {
			return parseError(L, "syntax", source)
		}
		if err := L.Call(0, 0); err != nil {
			return splitMessage("runtime", source, err.Error())
		}
		return nil
	})
}

func (e *engine) hasFunction(name string) bool {
	found := false
	_ = e.withState(func(L *lua.State) error {
		L.GetGlobal(name)
		found = L.IsFunction(-1)
		L.Pop(1)
		return nil
	})
	return found
}

// call invokes the global function name with args and hands its single
// result, still on the stack, to read.
func (e *engine) call(name string, args []any, read func(L *lua.State) error) error {
	return e.withState(func(L *lua.State) error {
		defer L.SetTop(L.GetTop())

		L.GetGlobal(name)
		if !L.IsFunction(-1) {
			return &ScriptError{Type: "api", Message: fmt.Sprintf("function %s not defined", name), Source: e.source}
		}

		for _, a := range args {
			switch v := a.(type) {
			case nil:
				L.PushNil()
			case string:
				L.PushString(v)
			case bool:
				L.PushBoolean(v)
			case int64:
				L.PushInteger(v)
			default:
				return &ScriptError{Type: "api", Message: fmt.Sprintf("unsupported argument %T", a), Source: e.source}
			}
		}

		if err := L.Call(len(args), 1); err != nil {
			return splitMessage("runtime", e.source, err.Error())
		}
		if read == nil {
			return nil
		}
		return read(L)
	})
}

func (e *engine) close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != nil {
		e.state.Close()
		e.state = nil
	}
}
