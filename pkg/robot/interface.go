package robot

import "context"

// DriveController provides straight-line movement.
// Use this minimal interface when only forward/backward motion is needed.
type DriveController interface {
	Forward(ctx context.Context, m Motion) (*Status, error)
	Backward(ctx context.Context, m Motion) (*Status, error)
}

// TurnController provides in-place rotation.
type TurnController interface {
	Left(ctx context.Context, m Motion) (*Status, error)
	Right(ctx context.Context, m Motion) (*Status, error)
}

// Stopper halts both motors immediately.
type Stopper interface {
	Stop(ctx context.Context) (*Status, error)
}

// Controller is the composite interface for full motion control.
type Controller interface {
	DriveController
	TurnController
	Stopper
}

// Ensure HTTPController implements Controller
var _ Controller = (*HTTPController)(nil)
