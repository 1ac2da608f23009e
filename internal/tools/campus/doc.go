// Package campus provides the learning-dashboard tools for the reasoning loop.
//
// Tools:
//   - list_courses: the student's enrolled courses with category and progress
//   - list_deadlines: upcoming timeline events, soonest first
//
// Both take no arguments and only read from the dashboard.
package campus
