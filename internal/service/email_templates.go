package service

import "fmt"

func confirmationEmailTemplate(name, confirmURL, appName string) (string, string) {
	subject := fmt.Sprintf("%s User Registration", appName)
	body := fmt.Sprintf(`Hi %s,

Thank you for registering on %s. Please confirm your email address by opening this link:
%s

You will be able to log in once your registration is confirmed.

If you didn't register, you can safely ignore this email.

Best,
The %s Team`, name, appName, confirmURL, appName)

	return subject, body
}

func welcomeEmailTemplate(name, loginURL, appName string) (string, string) {
	subject := fmt.Sprintf("Welcome to %s!", appName)
	body := fmt.Sprintf(`Hi %s,

Your email is confirmed and you now appear on the map.

Log in to update your information: %s

Best,
The %s Team`, name, loginURL, appName)

	return subject, body
}

func passwordResetEmailTemplate(name, resetURL, validity, appName string) (string, string) {
	subject := fmt.Sprintf("Reset your password for %s", appName)
	body := fmt.Sprintf(`Hi %s,

You requested to reset your password. Choose a new one here:
%s

This link expires in %s and stops working once your password has been changed.

If you didn't request this, you can safely ignore this email. Your password won't be changed.

Best,
The %s Team`, name, resetURL, validity, appName)

	return subject, body
}

func passwordChangedEmailTemplate(name, resetURL, appName string) (string, string) {
	subject := fmt.Sprintf("Your %s password was changed", appName)
	body := fmt.Sprintf(`Hi %s,

The password of your account was just changed and every other session was signed out.

If this wasn't you, reset your password right away: %s

Best,
The %s Team`, name, resetURL, appName)

	return subject, body
}
