/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

// getFavicon returns the <head> markup for the site icon. There is no
// static asset pipeline in this deployment, so the icon is an inline
// data URI rather than a served file.
func getFavicon() string {
	return `<link rel="icon" href="data:image/svg+xml,` +
		`%3Csvg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 16 16'%3E` +
		`%3Crect width='16' height='16' rx='3' fill='%236c5ce7'/%3E` +
		`%3Ctext x='8' y='12' font-size='10' text-anchor='middle' fill='white'%3EF%3C/text%3E` +
		`%3C/svg%3E">
	<meta name="theme-color" content="#6c5ce7">`
}
