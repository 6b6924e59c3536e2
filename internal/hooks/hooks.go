package hooks

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dop251/goja"

	"todo-man/internal/tasks"
)

// Hook function names looked up in the loaded scripts.
const (
	FnTransformText    = "transformText"
	FnRenderTaskRow    = "renderTaskRow"
	FnRenderTaskDetail = "renderTaskDetail"
)

var debug bool

// EnableDebug turns per-call logging on or off.
func EnableDebug(on bool) { debug = on }

// HookEnv is a JavaScript runtime holding user hook functions. It is not safe
// for concurrent use.
type HookEnv struct{ rt *goja.Runtime }

// LoadDir evaluates every .js file in dir in name order. A missing or
// unreadable dir yields an empty environment, not an error.
func LoadDir(dir string) (*HookEnv, error) {
	env := &HookEnv{rt: goja.New()}
	// expose minimal FS read helper
	env.rt.Set("readText", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 { return goja.Undefined() }
		b, err := os.ReadFile(call.Arguments[0].String())
		if err != nil { return goja.Null() }
		return env.rt.ToValue(string(b))
	})
	if dir == "" { return env, nil }
	entries, err := os.ReadDir(dir)
	if err != nil { return env, nil }
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".js" { continue }
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil { continue }
		if err := env.Eval(e.Name(), string(b)); err != nil {
			log.Printf("[hooks] error evaluating %s: %v", e.Name(), err)
		} else if debug {
			log.Printf("[hooks] loaded %s", e.Name())
		}
	}
	if debug {
		for _, name := range []string{FnTransformText, FnRenderTaskRow, FnRenderTaskDetail} {
			if env.Has(name) { log.Printf("[hooks] function available: %s", name) }
		}
	}
	return env, nil
}

// Eval runs a script in the environment. Simple ESM export keywords are stripped.
func (h *HookEnv) Eval(name, code string) error {
	code = strings.ReplaceAll(code, "export function ", "function ")
	code = strings.ReplaceAll(code, "export const ", "const ")
	code = strings.ReplaceAll(code, "export let ", "let ")
	code = strings.ReplaceAll(code, "export var ", "var ")
	_, err := h.rt.RunScript(name, code)
	return err
}

// Has reports whether fn is defined as a function.
func (h *HookEnv) Has(fn string) bool {
	if h == nil || h.rt == nil { return false }
	_, ok := goja.AssertFunction(h.rt.Get(fn))
	return ok
}

func (h *HookEnv) Call(fn string, arg any) (goja.Value, bool) {
	if h == nil || h.rt == nil { return goja.Undefined(), false }
	v := h.rt.Get(fn)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return goja.Undefined(), false
	}
	f, ok := goja.AssertFunction(v)
	if !ok {
		log.Printf("[hooks] symbol is not a function: %s", fn)
		return goja.Undefined(), false
	}
	rv, err := f(goja.Undefined(), h.rt.ToValue(arg))
	if err != nil {
		log.Printf("[hooks] error calling %s: %v", fn, err)
		return goja.Undefined(), false
	}
	if debug { log.Printf("[hooks] %s returned: %#v", fn, rv.Export()) }
	return rv, true
}

// CallString calls fn and returns its result when it is a non-empty string.
func (h *HookEnv) CallString(fn string, arg any) (string, bool) {
	rv, ok := h.Call(fn, arg)
	if !ok || goja.IsUndefined(rv) || goja.IsNull(rv) { return "", false }
	s, ok := rv.Export().(string)
	if !ok || s == "" { return "", false }
	return s, true
}

// TransformText passes new task text through transformText. The original text
// is kept when the hook is absent, fails, or returns blank text.
func (h *HookEnv) TransformText(text string) string {
	s, ok := h.CallString(FnTransformText, text)
	if !ok { return text }
	out, err := tasks.ValidateText(s)
	if err != nil { return text }
	return out
}

// RenderRow returns a replacement row title from renderTaskRow.
func (h *HookEnv) RenderRow(t tasks.Task) (string, bool) {
	return h.CallString(FnRenderTaskRow, TaskToMap(t))
}

// RenderDetail returns an extra markdown section from renderTaskDetail.
func (h *HookEnv) RenderDetail(t tasks.Task) (string, bool) {
	return h.CallString(FnRenderTaskDetail, TaskToMap(t))
}

// TaskToMap is the shape hook functions receive.
func TaskToMap(t tasks.Task) map[string]any {
	return map[string]any{
		"id":        t.ID,
		"text":      t.Text,
		"completed": t.Completed,
		"createdAt": t.CreatedAt.Format(time.RFC3339),
	}
}
