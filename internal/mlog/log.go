package mlog

import (
	"fmt"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/louteranas/nomad-viewer/value"
)

// LogRequest logs a debug message indicating that a request is being sent to
// an application instance.
func LogRequest(
	log logging.Logger,
	requestID string,
	app string,
	instanceID int32,
	operation string,
	size int,
) {
	logging.Debug(
		log,
		String(
			[]IconWithLabel{
				RequestIDIcon.WithID(requestID),
				InstanceLabel(app, instanceID),
			},
			[]Icon{
				OutboundIcon,
				"",
			},
			operation,
			fmt.Sprintf("%d byte(s)", size),
		),
	)
}

// LogResponse logs the outcome of a request.
//
// Successful responses are logged at debug level, failures are always
// logged.
func LogResponse(
	log logging.Logger,
	requestID string,
	app string,
	instanceID int32,
	operation string,
	size int,
	elapsed time.Duration,
	err error,
) {
	ids := []IconWithLabel{
		RequestIDIcon.WithID(requestID),
		InstanceLabel(app, instanceID),
	}

	if err != nil {
		logging.LogString(
			log,
			String(
				ids,
				[]Icon{InboundErrorIcon, ErrorIcon},
				operation,
				err.Error(),
			),
		)
		return
	}

	logging.Debug(
		log,
		String(
			ids,
			[]Icon{InboundIcon, ""},
			operation,
			fmt.Sprintf("%d byte(s) in %s", size, elapsed),
		),
	)
}

// LogNotification logs a debug message indicating that a property change
// notification has been received.
func LogNotification(
	log logging.Logger,
	propertyID int32,
	v value.Value,
	dropped bool,
) {
	if !logging.IsDebug(log) {
		return
	}

	text := []string{v.String()}
	if dropped {
		text = append(text, "no registered callback, dropped")
	}

	logging.Debug(
		log,
		String(
			[]IconWithLabel{
				PropertyIcon.WithLabel("%d", propertyID),
			},
			[]Icon{InboundIcon, ""},
			text...,
		),
	)
}

// LogCallbackFailure logs a message indicating that a change callback
// returned an error or panicked.
func LogCallbackFailure(
	log logging.Logger,
	propertyID int32,
	err error,
) {
	logging.LogString(
		log,
		String(
			[]IconWithLabel{
				PropertyIcon.WithLabel("%d", propertyID),
			},
			[]Icon{InboundErrorIcon, ErrorIcon},
			"change callback failed",
			err.Error(),
		),
	)
}

// LogLifecycle logs a message about an application lifecycle transition.
//
// err may be nil.
func LogLifecycle(
	log logging.Logger,
	app string,
	instanceID int32,
	err error,
	f string, v ...interface{},
) {
	text := []string{fmt.Sprintf(f, v...)}
	if err != nil {
		text = append(text, err.Error())
	}

	logging.LogString(
		log,
		String(
			[]IconWithLabel{
				InstanceLabel(app, instanceID),
			},
			[]Icon{SystemIcon, errorIcon(err)},
			text...,
		),
	)
}

// LogRetry logs a message indicating that an operation failed and will be
// re-attempted after a delay.
func LogRetry(
	log logging.Logger,
	operation string,
	cause error,
	delay time.Duration,
) {
	logging.LogString(
		log,
		String(
			nil,
			[]Icon{RetryIcon, ErrorIcon},
			operation,
			cause.Error(),
			fmt.Sprintf("next attempt in %s", delay),
		),
	)
}
