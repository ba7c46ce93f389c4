package logger

import (
	"strings"

	"go.uber.org/fx/fxevent"
)

// FxLoggerAdapter implements fxevent.Logger on top of the leveled logger.
// Wiring chatter goes to DEBUG so a normal collection run only shows lifecycle failures.
type FxLoggerAdapter struct {
	log Component
}

// NewFxLoggerAdapter creates a new instance of FxLoggerAdapter.
func NewFxLoggerAdapter() fxevent.Logger {
	return &FxLoggerAdapter{log: For("fx")}
}

// LogEvent logs events from Fx.
func (l *FxLoggerAdapter) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		l.log.Debugf("OnStart hook executing: %s", extractMeaningfulFunctionName(e.FunctionName))
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			l.log.Errorf("OnStart hook failed: %s, error: %v", extractMeaningfulFunctionName(e.FunctionName), e.Err)
		} else {
			l.log.Debugf("OnStart hook executed: %s", extractMeaningfulFunctionName(e.FunctionName))
		}
	case *fxevent.OnStopExecuting:
		l.log.Debugf("OnStop hook executing: %s", extractMeaningfulFunctionName(e.FunctionName))
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			l.log.Errorf("OnStop hook failed: %s, error: %v", extractMeaningfulFunctionName(e.FunctionName), e.Err)
		} else {
			l.log.Debugf("OnStop hook executed: %s", extractMeaningfulFunctionName(e.FunctionName))
		}
	case *fxevent.Supplied:
		if e.Err != nil {
			l.log.Errorf("Supplied failed: %v", e.Err)
		} else {
			l.log.Debugf("Supplied: %s", e.TypeName)
		}
	case *fxevent.Provided:
		for _, rtype := range e.OutputTypeNames {
			l.log.Debugf("Provided: %s", rtype)
		}
		if e.Err != nil {
			l.log.Errorf("Provide error: %v", e.Err)
		}
	case *fxevent.Invoking:
		l.log.Debugf("Invoking: %s", extractMeaningfulFunctionName(e.FunctionName))
	case *fxevent.Invoked:
		if e.Err != nil {
			l.log.Errorf("Invoke failed: %s, error: %v", e.FunctionName, e.Err)
		}
	case *fxevent.Stopping:
		l.log.Infof("signal %s received, stopping", e.Signal)
	case *fxevent.Stopped:
		if e.Err != nil {
			l.log.Errorf("Stop failed, error: %v", e.Err)
		}
	case *fxevent.RollingBack:
		l.log.Errorf("Start failed, rolling back, error: %v", e.StartErr)
	case *fxevent.RolledBack:
		if e.Err != nil {
			l.log.Errorf("Rollback failed, error: %v", e.Err)
		}
	case *fxevent.Started:
		if e.Err != nil {
			l.log.Errorf("Start failed, error: %v", e.Err)
		} else {
			l.log.Infof("collector wiring started")
		}
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			l.log.Errorf("Logger initialization failed, error: %v", e.Err)
		} else {
			l.log.Debugf("Custom logger initialized: %s", e.ConstructorName)
		}
	}
}

// extractMeaningfulFunctionName trims the ".funcN" suffix Fx reports for closures
// and drops the module path so hooks log as "usecase.NewSessionSupervisor".
func extractMeaningfulFunctionName(funcName string) string {
	if idx := strings.LastIndex(funcName, ".func"); idx != -1 {
		funcName = funcName[:idx]
	}
	if idx := strings.LastIndex(funcName, "/"); idx != -1 {
		funcName = funcName[idx+1:]
	}
	return funcName
}
