package main

import (
	"bytes"

	"github.com/fatih/color"
	"github.com/stretchr/testify/suite"

	"github.com/srg/classicgap/internal/testutils"
)

// CommandTestSuite runs gapctl commands against a fresh root command.
type CommandTestSuite struct {
	suite.Suite
	helper *testutils.TestHelper
}

func (s *CommandTestSuite) SetupSuite() {
	color.NoColor = true
}

func (s *CommandTestSuite) SetupTest() {
	s.helper = testutils.NewTestHelper(s.T())
}

// ExecuteCommand runs gapctl with args, returns output and error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, error) {
	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}
