package main

import "github.com/charmbracelet/lipgloss"

var (
	styleHeading = lipgloss.NewStyle().Bold(true)
	styleID      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	styleDetail  = lipgloss.NewStyle().Faint(true)
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleCount   = lipgloss.NewStyle().Bold(true)
)
