package printer

import "fmt"

// Command payload constants. The printer ignores sequence ids for cloud
// commands, so every command uses "0".
const (
	commandSequenceID = "0"

	ledOnTime       = 500
	ledOffTime      = 500
	ledLoopTimes    = 1
	ledIntervalTime = 1000

	pushallVersion    = 1
	pushallPushTarget = 1
)

// LightNode identifies a controllable light on the printer.
type LightNode string

// Light nodes reported in lights_report and accepted by ledctrl.
const (
	LightChamber LightNode = "chamber_light"
	LightWork    LightNode = "work_light"
)

// SpeedLevel is the printer's discrete print speed profile.
type SpeedLevel string

// Print speed levels accepted by the print_speed command.
const (
	SpeedSilent    SpeedLevel = "1"
	SpeedStandard  SpeedLevel = "2"
	SpeedSport     SpeedLevel = "3"
	SpeedLudicrous SpeedLevel = "4"
)

// Valid reports whether the level is one the printer understands.
func (l SpeedLevel) Valid() bool {
	switch l {
	case SpeedSilent, SpeedStandard, SpeedSport, SpeedLudicrous:
		return true
	default:
		return false
	}
}

// ParseSpeedLevel converts a user-supplied level ("1".."4") to a SpeedLevel.
func ParseSpeedLevel(value string) (SpeedLevel, error) {
	level := SpeedLevel(value)
	if !level.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSpeed, value)
	}
	return level, nil
}

// ledControl is the body of a system.ledctrl command.
type ledControl struct {
	SequenceID   string `json:"sequence_id"`
	Command      string `json:"command"`
	LEDNode      string `json:"led_node"`
	LEDMode      string `json:"led_mode"`
	LEDOnTime    int    `json:"led_on_time"`
	LEDOffTime   int    `json:"led_off_time"`
	LoopTimes    int    `json:"loop_times"`
	IntervalTime int    `json:"interval_time"`
}

// SystemCommand is published to control printer peripherals.
type SystemCommand struct {
	System ledControl `json:"system"`
}

// printControl is the body of a print command.
type printControl struct {
	SequenceID string `json:"sequence_id"`
	Command    string `json:"command"`
	Param      string `json:"param"`
}

// PrintCommand is published to control the running print.
type PrintCommand struct {
	Print printControl `json:"print"`
}

// pushingControl is the body of a pushing command.
type pushingControl struct {
	SequenceID string `json:"sequence_id"`
	Command    string `json:"command"`
	Version    int    `json:"version"`
	PushTarget int    `json:"push_target"`
}

// PushingCommand asks the printer to push its state.
type PushingCommand struct {
	Pushing pushingControl `json:"pushing"`
}

// LightCommand builds a ledctrl command switching node on or off.
func LightCommand(node LightNode, on bool) SystemCommand {
	mode := "off"
	if on {
		mode = "on"
	}
	return SystemCommand{System: ledControl{
		SequenceID:   commandSequenceID,
		Command:      "ledctrl",
		LEDNode:      string(node),
		LEDMode:      mode,
		LEDOnTime:    ledOnTime,
		LEDOffTime:   ledOffTime,
		LoopTimes:    ledLoopTimes,
		IntervalTime: ledIntervalTime,
	}}
}

// PauseCommand pauses the running print.
func PauseCommand() PrintCommand {
	return printCommand("pause", "")
}

// ResumeCommand resumes a paused print.
func ResumeCommand() PrintCommand {
	return printCommand("resume", "")
}

// StopCommand aborts the running print.
func StopCommand() PrintCommand {
	return printCommand("stop", "")
}

// SpeedCommand switches the print speed profile.
func SpeedCommand(level SpeedLevel) PrintCommand {
	return printCommand("print_speed", string(level))
}

// PushAllCommand requests a full state push. The reply arrives on the report
// topic like any other fragment and goes through the same merge.
func PushAllCommand() PushingCommand {
	return PushingCommand{Pushing: pushingControl{
		SequenceID: commandSequenceID,
		Command:    "pushall",
		Version:    pushallVersion,
		PushTarget: pushallPushTarget,
	}}
}

func printCommand(command, param string) PrintCommand {
	return PrintCommand{Print: printControl{
		SequenceID: commandSequenceID,
		Command:    command,
		Param:      param,
	}}
}
