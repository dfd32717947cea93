package agent

import (
	"context"
	"fmt"

	"github.com/qbitorbit/atlas/model"
	"github.com/qbitorbit/atlas/tool"
)

// DeviceController abstracts the device a device agent operates on. Test
// implementations return canned values; real implementations talk to adb,
// ssh or platform APIs.
type DeviceController interface {
	// Info returns identifying device properties (model, serial, OS version).
	Info(ctx context.Context) (map[string]any, error)

	// BatteryLevel returns the current charge percentage (0-100).
	BatteryLevel(ctx context.Context) (int, error)

	// Shell runs a command on the device and returns its combined output.
	Shell(ctx context.Context, command string) (string, error)
}

// NewDeviceAgent creates an agent that inspects and controls a device through
// the given controller. Its tool set covers device info, battery state and
// shell command execution.
func NewDeviceAgent(m model.Model, ctrl DeviceController, optFns ...func(o *Options)) *ReactAgent {
	a := NewReactAgent(
		"device",
		"You are a device control agent. Use the available tools to inspect "+
			"device state and run commands. Report results concisely.",
		m, optFns...,
	)

	a.AddTools(
		tool.NewFunctionTool(
			"get_device_info",
			"Returns identifying properties of the connected device",
			func(ctx context.Context, args map[string]any) (any, error) {
				return ctrl.Info(ctx)
			},
		),
		tool.NewFunctionTool(
			"get_battery_level",
			"Returns the current battery charge percentage",
			func(ctx context.Context, args map[string]any) (any, error) {
				level, err := ctrl.BatteryLevel(ctx)
				if err != nil {
					return nil, err
				}
				return fmt.Sprintf("%d%%", level), nil
			},
		),
		tool.NewFunctionTool(
			"run_shell_command",
			"Runs a shell command on the device and returns its output",
			func(ctx context.Context, args map[string]any) (any, error) {
				command, ok := args["command"].(string)
				if !ok || command == "" {
					return nil, tool.NewToolError("run_shell_command", "command must be a non-empty string", "VALIDATION_ERROR")
				}
				return ctrl.Shell(ctx, command)
			},
			func(o *tool.FunctionToolOptions) {
				o.Parameters = map[string]any{
					"type": "object",
					"properties": map[string]any{
						"command": map[string]any{
							"type":        "string",
							"description": "Shell command to execute on the device",
						},
					},
					"required": []string{"command"},
				}
			},
		),
	)

	return a
}
