// Package status announces daemon presence and the current page over
// MQTT using the retained last-will pattern.
package status
