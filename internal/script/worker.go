// Package script implements the embedded scripting backend: one dedicated
// goroutine and goja.Runtime per script model, serving a bounded task
// queue, honoring an export-based (falling back to classic-script) handle
// function, and never interrupting an in-flight call on caller timeout.
package script

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/llm-lab/mockllm/internal/apperr"
	"github.com/llm-lab/mockllm/internal/chatapi"
)

// queueCapacity bounds the per-worker task queue.
const queueCapacity = 64

type task struct {
	input  chatapi.ScriptInput
	replyC chan taskResult
}

type taskResult struct {
	output chatapi.ScriptOutput
	err    error
}

// Worker owns one goja.Runtime on one dedicated goroutine. Concurrent
// requests for the same script model serialize through its task queue;
// different script models run on separate workers in parallel.
type Worker struct {
	tasks chan task
	quit  chan struct{}

	closeOnce sync.Once
}

// Start constructs the interpreter, evaluates initPath (if non-empty) as a
// side-effecting module, evaluates scriptPath and resolves its exported (or
// global, for classic scripts) "handle" function, then spawns the worker
// goroutine. Initialization failure aborts startup synchronously — the
// caller (kernel reload) should treat a non-nil error as fatal to the
// reload.
func Start(scriptPath, initPath string) (*Worker, error) {
	vm := goja.New()

	if initPath != "" {
		if err := evalModuleFile(vm, initPath); err != nil {
			return nil, fmt.Errorf("init_file: %w", err)
		}
	}

	handleFn, err := loadHandle(vm, scriptPath)
	if err != nil {
		return nil, err
	}

	w := &Worker{
		tasks: make(chan task, queueCapacity),
		quit:  make(chan struct{}),
	}
	go w.run(vm, handleFn)
	return w, nil
}

func evalModuleFile(vm *goja.Runtime, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %q: %w", path, err)
	}
	source := string(data)
	if looksLikeESModule(source) {
		loader := newModuleLoader(filepath.Dir(path))
		transformed, err := loader.transform(source)
		if err != nil {
			return fmt.Errorf("%q: %w", path, err)
		}
		source = transformed
	}
	if _, err := vm.RunString(source); err != nil {
		return fmt.Errorf("evaluate %q: %w", path, err)
	}
	return nil
}

// loadHandle evaluates scriptPath and returns its "handle" function: if
// the source looks like an ES module, lower and evaluate it and read the
// resulting global `handle`; if it doesn't look like a module at all,
// evaluate it unmodified as a classic script and read global `handle`.
// When no `handle` is defined, a default export (lowered to `__default`)
// is used instead. Anything else is a load failure.
func loadHandle(vm *goja.Runtime, scriptPath string) (goja.Callable, error) {
	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("read script file: %w", err)
	}
	source := string(data)

	isModule := looksLikeESModule(source)
	body := source
	if isModule {
		loader := newModuleLoader(filepath.Dir(scriptPath))
		transformed, err := loader.transform(source)
		if err != nil {
			return nil, fmt.Errorf("script module: %w", err)
		}
		body = transformed
	}

	if _, err := vm.RunString(body); err != nil {
		return nil, fmt.Errorf("evaluate script: %w", err)
	}

	handleVal := vm.Get("handle")
	if handleVal == nil || goja.IsUndefined(handleVal) {
		if defaultVal := vm.Get("__default"); defaultVal != nil && !goja.IsUndefined(defaultVal) {
			handleVal = defaultVal
		}
	}
	fn, ok := goja.AssertFunction(handleVal)
	if !ok {
		return nil, fmt.Errorf("missing export handle: script does not define a callable \"handle\"")
	}
	return fn, nil
}

// run is the worker's single goroutine; vm is never touched from any other
// goroutine.
func (w *Worker) run(vm *goja.Runtime, handle goja.Callable) {
	for {
		select {
		case t := <-w.tasks:
			output, err := call(vm, handle, t.input)
			t.replyC <- taskResult{output: output, err: err}
		case <-w.quit:
			return
		}
	}
}

func call(vm *goja.Runtime, handle goja.Callable, input chatapi.ScriptInput) (chatapi.ScriptOutput, error) {
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return chatapi.ScriptOutput{}, fmt.Errorf("serialize script input: %w", err)
	}
	var inputObj interface{}
	if err := json.Unmarshal(inputJSON, &inputObj); err != nil {
		return chatapi.ScriptOutput{}, fmt.Errorf("serialize script input: %w", err)
	}
	arg := vm.ToValue(inputObj)

	result, err := handle(goja.Undefined(), arg)
	if err != nil {
		return chatapi.ScriptOutput{}, fmt.Errorf("script threw: %w", err)
	}

	var out chatapi.ScriptOutput
	exported := result.Export()
	raw, err := json.Marshal(exported)
	if err != nil {
		return chatapi.ScriptOutput{}, fmt.Errorf("serialize script output: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return chatapi.ScriptOutput{}, fmt.Errorf("decode script output: %w", err)
	}
	return out, nil
}

// Call enqueues input and awaits the worker's reply with the given
// timeout. On timeout it returns Internal("script timeout") without
// interrupting the worker: the in-flight call runs to completion and its
// eventual result is discarded. The enqueue itself blocks briefly if the
// task queue is full rather than failing fast.
func (w *Worker) Call(ctx context.Context, input chatapi.ScriptInput, timeout time.Duration) (chatapi.ScriptOutput, error) {
	t := task{input: input, replyC: make(chan taskResult, 1)}

	select {
	case w.tasks <- t:
	case <-w.quit:
		return chatapi.ScriptOutput{}, apperr.New(apperr.Internal, "script worker closed")
	case <-ctx.Done():
		return chatapi.ScriptOutput{}, apperr.Wrap(apperr.Internal, "script worker unavailable", ctx.Err())
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-t.replyC:
		if r.err != nil {
			return chatapi.ScriptOutput{}, apperr.Wrap(apperr.Internal, "script call failed", r.err)
		}
		return r.output, nil
	case <-timer.C:
		return chatapi.ScriptOutput{}, apperr.New(apperr.Internal, "script timeout")
	case <-ctx.Done():
		return chatapi.ScriptOutput{}, apperr.Wrap(apperr.Internal, "script call canceled", ctx.Err())
	}
}

// Close stops the worker goroutine once its current call (if any) finishes.
// In-flight calls are not interrupted; tasks enqueued but not yet picked up
// are abandoned and surface to their callers as timeouts. Safe to call more
// than once.
func (w *Worker) Close() {
	w.closeOnce.Do(func() { close(w.quit) })
}
