package cmdutil

import (
	"fmt"
	"geohost/internal/types"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"os"
	"strings"
	"time"
)

var (
	loadingSpinner = spinner.New(spinner.CharSets[0], time.Millisecond*100)
)

func PrintE(message string) {
	println()
	color.Red(message)
}

func Print(message string) {
	_, _ = fmt.Fprintln(os.Stdout, message)
}

func PrintS(message string) {
	println()
	color.Green(message)
}

func StartLoading(message string) {
	loadingSpinner.Prefix = message
	loadingSpinner.Start()
}

func StopLoading() {
	loadingSpinner.Stop()
}

// Confirm asks a yes/no question. An aborted prompt counts as no.
func Confirm(label string) bool {
	p := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	result, err := p.Run()
	if err != nil {
		return false
	}
	return IsYes(result)
}

func IsYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// ColorStatus renders an instance status the way operators scan for it.
func ColorStatus(status types.InstanceStatus) string {
	switch status {
	case types.InstanceStatusOnline:
		return color.GreenString(status.String())
	case types.InstanceStatusOffline:
		return color.RedString(status.String())
	case types.InstanceStatusTerminating, types.InstanceStatusTerminated:
		return color.HiBlackString(status.String())
	default:
		return color.YellowString(status.String())
	}
}
