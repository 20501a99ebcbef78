package handler

// add error emoji to the error message
const defaultErrorMessage = "❌ Something went wrong while processing your request. Please try again later. ```Error: %s```"
