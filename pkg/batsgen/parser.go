package batsgen

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/aidarkhanov/nanoid"
	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
)

type parserCtx struct {
	ctx           context.Context
	options       map[string]ScriptOption
	optionValues  map[string]string
	envOverrides  map[string]string
	yamlCache     map[string]interface{}
	helperSources map[string]string
	filepath      string
	projectRoot   string
	targets       []*Target
	initPhase     bool
}

func getCtx(thread *starlark.Thread) *parserCtx {
	return thread.Local("parserCtx").(*parserCtx)
}

func info(thread *starlark.Thread, msg string, args ...interface{}) {
	ctx := getCtx(thread)
	pos := thread.CallFrame(1).Pos

	filepath := simplifyPath(ctx, ctx.filepath)

	log(ctx.ctx).Info().
		Msgf("%s:%d:%d: %s", filepath, pos.Line, pos.Col, fmt.Sprintf(msg, args...))
}

func warn(thread *starlark.Thread, msg string, args ...interface{}) {
	ctx := getCtx(thread)
	pos := thread.CallFrame(1).Pos

	filepath := simplifyPath(ctx, ctx.filepath)

	log(ctx.ctx).Warn().
		Msgf("%s:%d:%d: %s", filepath, pos.Line, pos.Col, fmt.Sprintf(msg, args...))
}

// * Builtin functions

func option(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var defaultValue starlark.String
	var help string

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "default?", &defaultValue, "help?", &help)
	if err != nil {
		return nil, err
	}

	ctx := getCtx(thread)
	if !ctx.initPhase {
		return nil, eris.New("can only be called during the init phase (in the global scope)")
	}

	ctx.options[name] = ScriptOption{
		DefaultValue: defaultValue,
		Help:         help,
	}

	value, ok := ctx.optionValues[name]
	if ok {
		return starlark.String(value), nil
	}

	return defaultValue, nil
}

// targetFromKwargs processes the keyword arguments shared by bats_test() and
// bats_test_suite(). Supported keywords are enumerated explicitly; anything
// else ends up in the target's Extra map and has to be a plain string.
func targetFromKwargs(thread *starlark.Thread, fn *starlark.Builtin, kwargs []starlark.Tuple) (*Target, error) {
	target := &Target{
		Interpreter: DefaultInterpreter,
		Env:         map[string]string{},
		Extra:       map[string]string{},
	}

	for _, kv := range kwargs {
		key := string(kv[0].(starlark.String))
		value := kv[1]

		var err error
		switch key {
		case "name":
			target.Name, err = stringValue(key, value)
		case "desc":
			target.Desc, err = stringValue(key, value)
		case "interpreter":
			target.Interpreter, err = stringValue(key, value)
		case "srcs":
			target.Srcs, err = stringListValue(key, value)
		case "deps":
			target.Deps, err = stringListValue(key, value)
		case "args":
			target.Args, err = stringListValue(key, value)
		case "tags":
			target.Tags, err = stringListValue(key, value)
		case "env":
			target.Env, err = stringDictValue(key, value)
		case "uses_bats_assert":
			target.UsesAssert, err = boolValue(key, value)
		case "hidden":
			target.Hidden, err = boolValue(key, value)
		default:
			var extra string
			extra, err = stringValue(key, value)
			if err != nil {
				err = eris.Wrapf(err, "%s: unsupported keyword %s", fn.Name(), key)
			} else {
				target.Extra[key] = extra
			}
		}

		if err != nil {
			return nil, err
		}
	}

	if target.Name == "" {
		target.Hidden = true
		target.Name = "auto#" + nanoid.New()
	}

	target.Base = normalizePath(getCtx(thread), ".")
	return target, nil
}

// registerTarget records a declared target. Hidden targets are kept too so
// suites can reference their members by name; they are only filtered from
// listings.
func registerTarget(thread *starlark.Thread, target *Target) {
	ctx := getCtx(thread)
	ctx.targets = append(ctx.targets, target)
}

func batsTest(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, eris.Errorf("%s: only keyword arguments are supported", fn.Name())
	}

	target, err := targetFromKwargs(thread, fn, kwargs)
	if err != nil {
		return nil, err
	}

	if len(target.Srcs) == 0 {
		warn(thread, "%s: target %s has no srcs", fn.Name(), target.Name)
	}

	registerTarget(thread, target)
	return target, nil
}

// memberName derives a suite member's name from its source file.
func memberName(suite, src string) string {
	base := path.Base(src)
	return suite + "." + strings.TrimSuffix(base, path.Ext(base))
}

func batsTestSuite(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, eris.Errorf("%s: only keyword arguments are supported", fn.Name())
	}

	template, err := targetFromKwargs(thread, fn, kwargs)
	if err != nil {
		return nil, err
	}

	if len(template.Srcs) == 0 {
		return nil, eris.Errorf("%s: suite %s needs at least one src", fn.Name(), template.Name)
	}

	suite := &Target{
		Name:    template.Name,
		Desc:    template.Desc,
		Base:    template.Base,
		Tags:    template.Tags,
		Env:     map[string]string{},
		Extra:   template.Extra,
		Members: make([]string, 0, len(template.Srcs)),
		Hidden:  template.Hidden,
	}

	for _, src := range template.Srcs {
		member := *template
		member.Name = memberName(suite.Name, src)
		member.Srcs = []string{src}
		member.Members = nil

		memberEnv := make(map[string]string, len(template.Env))
		for name, value := range template.Env {
			memberEnv[name] = value
		}
		member.Env = memberEnv

		registerTarget(thread, &member)
		suite.Members = append(suite.Members, member.Name)
	}

	registerTarget(thread, suite)
	return suite, nil
}

// RunScript evaluates a tests.star build script and returns the declared
// options. If doConfigure is true, the script's configure function is called
// (if there is one) and the declared targets are collected and returned.
func RunScript(ctx context.Context, filename, projectRoot string, options map[string]string, doConfigure bool) (*BuildFile, error) {
	projectRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, err
	}

	filename, err = filepath.Abs(filename)
	if err != nil {
		return nil, err
	}

	builtins := starlark.StringDict{
		"OS":              starlark.String(runtime.GOOS),
		"ARCH":            starlark.String(runtime.GOARCH),
		"info":            starlark.NewBuiltin("info", starInfo),
		"warn":            starlark.NewBuiltin("warn", starWarn),
		"error":           starlark.NewBuiltin("error", starError),
		"resolve_path":    starlark.NewBuiltin("resolve_path", resolvePath),
		"option":          starlark.NewBuiltin("option", option),
		"getenv":          starlark.NewBuiltin("getenv", getenv),
		"setenv":          starlark.NewBuiltin("setenv", setenv),
		"prepend_path":    starlark.NewBuiltin("prepend_path", prependPathDir),
		"read_yaml":       starlark.NewBuiltin("read_yaml", readYaml),
		"isdir":           starlark.NewBuiltin("isdir", starIsdir),
		"isfile":          starlark.NewBuiltin("isfile", starIsfile),
		"helper_lib":      starlark.NewBuiltin("helper_lib", helperLib),
		"bats_test":       starlark.NewBuiltin("bats_test", batsTest),
		"bats_test_suite": starlark.NewBuiltin("bats_test_suite", batsTestSuite),
	}

	thread := &starlark.Thread{
		Name: "main",
		Print: func(thread *starlark.Thread, msg string) {
			log(ctx).Info().Str("thread", thread.Name).Msg(msg)
		},
	}
	threadCtx := parserCtx{
		ctx:           ctx,
		filepath:      filename,
		projectRoot:   projectRoot,
		options:       make(map[string]ScriptOption),
		optionValues:  options,
		envOverrides:  make(map[string]string),
		helperSources: make(map[string]string),
		targets:       make([]*Target, 0),
		yamlCache:     make(map[string]interface{}),
		initPhase:     true,
	}
	thread.SetLocal("parserCtx", &threadCtx)

	script, err := os.ReadFile(filename)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read file")
	}

	globals, err := starlark.ExecFile(thread, simplifyPath(&threadCtx, filename), script, builtins)
	if err != nil {
		if evalError, ok := err.(*starlark.EvalError); ok {
			return nil, eris.Errorf("failed to execute %s:\n%s", simplifyPath(&threadCtx, filename), evalError.Backtrace())
		}
		return nil, eris.Wrap(err, "failed to execute")
	}

	result := &BuildFile{
		Targets:       TargetList{},
		Options:       threadCtx.options,
		HelperSources: threadCtx.helperSources,
	}

	if doConfigure {
		// targets are usually declared at the global scope but a script can
		// defer declarations to a configure function to act on option values
		if configure, ok := globals["configure"]; ok {
			configureFunc, ok := configure.(starlark.Callable)
			if !ok {
				return nil, eris.Errorf("%s declares a configure value but it's not a function", simplifyPath(&threadCtx, filename))
			}

			threadCtx.initPhase = false
			_, err = starlark.Call(thread, configureFunc, make(starlark.Tuple, 0), make([]starlark.Tuple, 0))
			if err != nil {
				if evalError, ok := err.(*starlark.EvalError); ok {
					return nil, eris.New(evalError.Backtrace())
				}
				return nil, eris.Wrapf(err, "failed configure call in %s", simplifyPath(&threadCtx, filename))
			}
		}

		for _, target := range threadCtx.targets {
			_, present := result.Targets[target.Name]
			if present {
				return nil, eris.Errorf("the target name %s was declared twice", target.Name)
			}

			result.Targets[target.Name] = target

			for name, value := range threadCtx.envOverrides {
				_, present := target.Env[name]
				if !present {
					target.Env[name] = value
				}
			}
		}
	}

	return result, nil
}
