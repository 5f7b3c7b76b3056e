package batsgen

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
)

func normalizePath(ctx *parserCtx, pathList ...string) string {
	result := filepath.Dir(ctx.filepath)

	for _, path := range pathList {
		if strings.HasPrefix(path, "//") {
			result = filepath.Join(ctx.projectRoot, path[2:])
		} else if strings.HasPrefix(path, "/") {
			result = filepath.Join(filepath.VolumeName(result), path)
		} else if !filepath.IsAbs(path) {
			result = filepath.Join(result, path)
		} else {
			result = path
		}
	}

	return filepath.Clean(result)
}

func simplifyPath(ctx *parserCtx, path string) string {
	projectRoot := ctx.projectRoot
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}

	if strings.HasPrefix(absPath, projectRoot) {
		return "//" + absPath[len(projectRoot)+1:]
	}
	return path
}

func stringValue(key string, value starlark.Value) (string, error) {
	switch value := value.(type) {
	case starlark.String:
		return value.GoString(), nil
	case StarlarkPath:
		return string(value), nil
	default:
		return "", eris.Errorf("expected a string for %s but found %s", key, value.Type())
	}
}

func boolValue(key string, value starlark.Value) (bool, error) {
	result, ok := value.(starlark.Bool)
	if !ok {
		return false, eris.Errorf("expected a bool for %s but found %s", key, value.Type())
	}

	return bool(result), nil
}

type starlarkIterable interface {
	Len() int
	Iterate() starlark.Iterator
}

func stringListValue(key string, value starlark.Value) ([]string, error) {
	input, ok := value.(starlarkIterable)
	if !ok {
		return nil, eris.Errorf("expected a list for %s but found %s", key, value.Type())
	}

	if value, ok := input.(*starlark.List); ok && value == nil {
		return []string{}, nil
	}

	result := make([]string, 0, input.Len())
	iter := input.Iterate()
	defer iter.Done()

	var item starlark.Value
	for iter.Next(&item) {
		entry, err := stringValue(key, item)
		if err != nil {
			return nil, eris.Wrapf(err, "in %s", key)
		}

		result = append(result, entry)
	}
	return result, nil
}

func stringDictValue(key string, value starlark.Value) (map[string]string, error) {
	dict, ok := value.(*starlark.Dict)
	if !ok {
		return nil, eris.Errorf("expected a dict for %s but found %s", key, value.Type())
	}

	result := make(map[string]string, dict.Len())
	for _, rawKey := range dict.Keys() {
		entryKey, err := stringValue(key, rawKey)
		if err != nil {
			return nil, eris.Wrapf(err, "in the keys of %s", key)
		}

		rawValue, _, err := dict.Get(rawKey)
		if err != nil {
			return nil, err
		}

		entryValue, err := stringValue(entryKey, rawValue)
		if err != nil {
			return nil, eris.Wrapf(err, "in the values of %s", key)
		}

		result[entryKey] = entryValue
	}

	return result, nil
}
