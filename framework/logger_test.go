package framework

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capturedMessages(output CapturedOutput) []string {
	messages := make([]string, 0, len(output))
	for _, m := range output {
		messages = append(messages, m.Message)
	}
	return messages
}

func TestLoggerWithPrefix(t *testing.T) {
	var base CapturingLogger
	logger := LoggerWithPrefix(&base, "[pose] ")

	logger.Printf("update %d", 3)
	logger.Println("done")

	assert.Equal(t, []string{"[pose] update 3", "[pose]  done"},
		capturedMessages(base.Output()))
}

func TestCapturingLoggerChildReceivesParentOutput(t *testing.T) {
	var parent, child CapturingLogger

	parent.Printf("before")
	parent.AddChildLogger(&child)
	parent.Printf("during")
	parent.RemoveChildLogger(&child)
	parent.Printf("after")

	assert.Equal(t, []string{"before", "during"}, capturedMessages(child.Output()))
	require.NotEmpty(t, parent.Output())
	assert.Equal(t, []string{"before", "after"}, capturedMessages(parent.Output()))
}
