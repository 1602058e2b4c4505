package step

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/mrz1836/tabula/internal/flowcontrol"
)

// BaseTarget is the target of the built-in commands.
const BaseTarget = "base"

// RegisterBase adds the built-in commands: save, clear, assertEqual,
// assertNotEqual, assertTrue, verbose, fail, warn and wait.
func RegisterBase(r *Registry) error {
	commands := []Command{
		NewCommand(BaseTarget, "save", save),
		NewCommand(BaseTarget, "clear", clearVars),
		NewCommand(BaseTarget, "assertEqual", assertEqual),
		NewCommand(BaseTarget, "assertNotEqual", assertNotEqual),
		NewCommand(BaseTarget, "assertTrue", assertTrue),
		NewCommand(BaseTarget, "verbose", verbose),
		NewCommand(BaseTarget, "fail", fail),
		NewCommand(BaseTarget, "warn", warn),
		NewCommand(BaseTarget, "wait", wait),
	}
	for _, c := range commands {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func param(params []string, i int) string {
	if i < len(params) {
		return params[i]
	}
	return ""
}

func save(_ context.Context, vars Variables, params []string) Result {
	name := strings.TrimSpace(param(params, 0))
	if name == "" {
		return Fail("save: variable name is required")
	}
	vars.Set(name, param(params, 1))
	return Pass("saved " + name)
}

func clearVars(_ context.Context, vars Variables, params []string) Result {
	var cleared []string
	for _, name := range strings.Split(param(params, 0), ",") {
		if name = strings.TrimSpace(name); name != "" {
			vars.Remove(name)
			cleared = append(cleared, name)
		}
	}
	if len(cleared) == 0 {
		return Fail("clear: no variable named")
	}
	return Pass("cleared " + strings.Join(cleared, ","))
}

func assertEqual(_ context.Context, _ Variables, params []string) Result {
	expected, actual := param(params, 0), param(params, 1)
	if expected != actual {
		return Failf("expected %q but found %q", expected, actual)
	}
	return Pass("values are equal")
}

func assertNotEqual(_ context.Context, _ Variables, params []string) Result {
	expected, actual := param(params, 0), param(params, 1)
	if expected == actual {
		return Failf("expected a value other than %q", expected)
	}
	return Pass("values differ")
}

// assertTrue evaluates its parameter with the flow control filter language.
// The parameter arrives substituted, so variables are looked up only for
// is defined/undefined forms.
func assertTrue(_ context.Context, vars Variables, params []string) Result {
	f, err := flowcontrol.ParseFilter(param(params, 0))
	if err != nil {
		return Failf("assertTrue: %v", err)
	}
	if !f.Match(vars) {
		return Failf("condition %q is false", f.String())
	}
	return Pass("condition is true")
}

func verbose(_ context.Context, _ Variables, params []string) Result {
	return Pass(param(params, 0))
}

func fail(_ context.Context, _ Variables, params []string) Result {
	msg := param(params, 0)
	if msg == "" {
		msg = "failed on request"
	}
	return Fail(msg)
}

func warn(_ context.Context, _ Variables, params []string) Result {
	return Warn(param(params, 0))
}

func wait(ctx context.Context, _ Variables, params []string) Result {
	ms, err := strconv.Atoi(strings.TrimSpace(param(params, 0)))
	if err != nil || ms < 0 {
		return Failf("wait: invalid milliseconds %q", param(params, 0))
	}
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Warn("wait interrupted")
	case <-timer.C:
		return Pass("waited " + strconv.Itoa(ms) + "ms")
	}
}
