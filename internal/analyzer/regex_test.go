package analyzer

import (
	"context"
	"testing"

	"github.com/kpblcaoo/llmstruct/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for the regex fallback analyzers:
// - generic: Java imports, classes and methods with line ranges
// - generic: C includes and functions, control statements are not functions
// - calls through an import alias are recorded as qualified
// - every record and entity is marked fallback
// - Python: indentation nests methods and closes scopes

func TestGenericFallback_Java(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSource(t, root, "Service.java", `import java.util.List;

public class Service {
    public void run() {
        List.of(1);
    }
}
`)

	record, err := NewGenericFallbackAnalyzer(model.LanguageJava).Analyze(context.Background(), root, "Service.java")
	require.NoError(t, err)

	assert.True(t, record.Fallback)
	assert.Equal(t, []string{"java.util.List"}, record.Dependencies)
	require.Len(t, record.Imports, 1)
	assert.Equal(t, "List", record.Imports[0].Alias)

	service := findClass(t, record, "Service")
	assert.Equal(t, &model.LineRange{Start: 3, End: 7}, service.LineRange)
	assert.Equal(t, []string{"run"}, service.Methods)
	assert.Contains(t, service.Tags, model.TagFallback)

	run := findFunction(t, record, "run")
	assert.Equal(t, "Service", run.Parent)
	assert.Equal(t, model.EntityMethod, run.Kind)
	assert.Equal(t, []string{"List.of"}, run.Calls)
	assert.Equal(t, model.CallQualified, callKinds(run)["List.of"])
}

func TestGenericFallback_C(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSource(t, root, "main.c", `#include <stdio.h>

static int add(int a, int b) {
    if (a > b) {
        return a;
    }
    return a + b;
}

int main(void) {
    printf("%d\n", add(1, 2));
    return 0;
}
`)

	record, err := NewGenericFallbackAnalyzer(model.LanguageC).Analyze(context.Background(), root, "main.c")
	require.NoError(t, err)

	assert.Equal(t, []string{"stdio.h"}, record.Dependencies)
	require.Len(t, record.Functions, 2)

	add := findFunction(t, record, "add")
	assert.Equal(t, &model.LineRange{Start: 3, End: 8}, add.LineRange)
	assert.Equal(t, "static int add(int a, int b)", add.Signature)

	mainFn := findFunction(t, record, "main")
	assert.Equal(t, &model.LineRange{Start: 10, End: 13}, mainFn.LineRange)
	assert.Empty(t, record.Classes)
}

func TestPythonFallback_Nesting(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSource(t, root, "m.py", `import os

class A(Base, metaclass=Meta):
    @staticmethod
    def make():
        return os.getcwd()

    async def load(self):
        pass

def top():
    def inner():
        pass
`)

	record, err := NewPythonFallbackAnalyzer().Analyze(context.Background(), root, "m.py")
	require.NoError(t, err)

	a := findClass(t, record, "A")
	assert.Equal(t, []string{"Base"}, a.Bases)
	assert.ElementsMatch(t, []string{"make", "load"}, a.Methods)
	assert.Equal(t, &model.LineRange{Start: 3, End: 9}, a.LineRange)

	mk := findFunction(t, record, "make")
	assert.Equal(t, []string{"staticmethod"}, mk.Decorators)
	assert.Equal(t, []string{"os.getcwd"}, mk.Calls)

	assert.True(t, findFunction(t, record, "load").IsAsync)

	inner := findFunction(t, record, "inner")
	assert.Equal(t, "top", inner.Parent)
	assert.Equal(t, model.EntityFunction, inner.Kind)
	assert.Empty(t, findFunction(t, record, "top").Parent)
}
