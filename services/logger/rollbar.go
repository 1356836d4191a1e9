package logsvc

import (
	"context"
	"fmt"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/trezcool/catechism/core"
	"github.com/trezcool/catechism/core/user"
)

// NewZapLogger returns the sugared zap logger used for local output.
func NewZapLogger(conf *core.Config) (*zap.SugaredLogger, error) {
	zconf := zap.NewProductionConfig()
	if conf.Debug || conf.Env == "dev" {
		zconf = zap.NewDevelopmentConfig()
	}
	zconf.InitialFields = map[string]interface{}{"app": conf.AppName, "build": conf.Build}
	zl, err := zconf.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return zl.Sugar(), nil
}

type RollbarLogger struct {
	sugar *zap.SugaredLogger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(sugar *zap.SugaredLogger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{sugar: sugar}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

func (l RollbarLogger) Sync() error {
	rollbar.Wait()
	return l.sugar.Sync()
}

// expected fmt: msg | error, map[string]interface{}, user.User
// The first User becomes the person of the Rollbar item, carried by the item's context.
func (l RollbarLogger) prepare(msg string, args []interface{}) (rbArgs []interface{}, kvs []interface{}, person *rollbar.Person) {
	rbArgs = make([]interface{}, 0, len(args)+2)
	rbArgs = append(rbArgs, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case user.User:
			if person == nil {
				person = &rollbar.Person{Id: a.ID, Username: a.Username, Email: a.Email}
				kvs = append(kvs, "user", a.ID)
			}
			continue
		case error:
			kvs = append(kvs, "error", fmt.Sprintf("%+v", a))
		case map[string]interface{}:
			for k, v := range a {
				kvs = append(kvs, k, v)
			}
		default:
			kvs = append(kvs, "extra", a)
		}
		rbArgs = append(rbArgs, arg)
	}
	if person != nil {
		rbArgs = append(rbArgs, rollbar.NewPersonContext(context.Background(), person))
	}
	return rbArgs, kvs, person
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rbArgs, kvs, _ := l.prepare(msg, args)
	rollbar.Debug(rbArgs...)
	l.sugar.Debugw(msg, kvs...)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rbArgs, kvs, _ := l.prepare(msg, args)
	rollbar.Info(rbArgs...)
	l.sugar.Infow(msg, kvs...)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rbArgs, kvs, _ := l.prepare(msg, args)
	rollbar.Warning(rbArgs...)
	l.sugar.Warnw(msg, kvs...)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rbArgs, kvs, _ := l.prepare(msg, args)
	rollbar.Error(rbArgs...)
	l.sugar.Errorw(msg, kvs...)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rbArgs, kvs, _ := l.prepare(msg, args)
	rollbar.Critical(rbArgs...)
	rollbar.Wait()
	l.sugar.Fatalw(msg, kvs...)
}
