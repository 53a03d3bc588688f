package browser

import (
	"context"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"
)

// DefaultEvalTimeout bounds evaluations that take no caller context.
const DefaultEvalTimeout = 5 * time.Second

// eval runs js (a function expression) with args, awaiting a returned
// promise, and returns the result by value.
func eval(ctx context.Context, page *rod.Page, js string, args ...interface{}) (gson.JSON, error) {
	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return gson.JSON{}, err
	}
	return res.Value, nil
}

// evalShort is eval under DefaultEvalTimeout.
func evalShort(page *rod.Page, js string, args ...interface{}) (gson.JSON, error) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultEvalTimeout)
	defer cancel()
	return eval(ctx, page, js, args...)
}

// cssString quotes s as a CSS string literal.
func cssString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `)
	return `"` + r.Replace(s) + `"`
}
