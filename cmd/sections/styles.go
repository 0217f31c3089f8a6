package main

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("39")
	colorSuccess = lipgloss.Color("42")
	colorWarning = lipgloss.Color("220")
	colorDim     = lipgloss.Color("241")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	indexStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Width(4).
			Align(lipgloss.Right)

	rangeStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorWarning)
)
