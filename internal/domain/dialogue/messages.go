package dialogue

import "github.com/0xcro3dile/coopchat-go/internal/domain/entities"

const (
	BillingWelcome = "¡Hola! 👋 Soy tu asistente virtual para consultas de boletas de agua potable.\n\n" +
		"Puedo ayudarte con:\n" +
		"• 📄 Ver tu boleta actual\n" +
		"• 💵 Consultar montos y fechas de pago\n" +
		"• 📊 Revisar tu consumo de agua\n" +
		"• 📈 Comparar consumos entre diferentes períodos\n" +
		"• ✅ Verificar el estado de pago\n\n" +
		"¿En qué puedo ayudarte hoy?"

	EmergencyWelcome = "¡Hola! Soy el asistente virtual de la Cooperativa de Agua Potable. \n\n" +
		"Estoy aquí para ayudarte a reportar una emergencia relacionada con el servicio de agua potable.\n\n" +
		"Por favor, cuéntame qué situación estás enfrentando y te guiaré en el proceso de reporte."

	// IntentMenu is returned verbatim while the intent is unknown.
	IntentMenu = "¿En qué puedo ayudarte hoy? Puedes:\n\n" +
		"• Ver tu boleta actual\n" +
		"• Consultar el monto a pagar\n" +
		"• Revisar tu consumo\n" +
		"• Comparar consumos entre períodos\n" +
		"• Verificar el estado de pago\n" +
		"• Otra consulta"

	NoInvoiceReply = "No encontré boletas registradas con tu RUT en nuestro sistema.\n\n" +
		"📸 Por favor, envíame una foto de tu boleta para poder ayudarte. " +
		"Una vez que la reciba, podré registrarla y responder tus consultas.\n\n" +
		"Si crees que el RUT es incorrecto, puedes escribirlo nuevamente."

	BillingFollowUp = "\n\n¿Hay algo más en lo que pueda ayudarte con tu boleta?"

	BillingFarewell = "¡Gracias por contactarnos! Que tengas un excelente día. 👋"

	LimitedReply = "Disculpa, en este momento el servicio de asistencia está temporalmente limitado. " +
		"¿Podrías intentarlo nuevamente en unos minutos?"

	FinishedReply = "Conversación finalizada. Puedes iniciar una nueva conversación."

	ContactQuestion = "\n\n¿Deseas que te proporcionemos datos de contacto de colaboradores de la cooperativa?"

	ContactList = "📞 **Contactos de la Cooperativa:**\n\n" +
		"- **Recaudación:** +56 9 8149 4350\n" +
		"- **Gerente:** +56 9 7846 7011  \n" +
		"- **Operador:** +56 9 5403 8948\n" +
		"- **Correo:** laciacoop@gmail.com\n\n" +
		"Horario de atención: Lunes a Viernes, 08:00 - 17:00\n" +
		"Teléfono de emergencias: +56 9 5403 8948 (24/7)"

	EmergencyRegistered = "✅ Tu emergencia ha sido registrada exitosamente. " +
		"El personal operativo será notificado según la prioridad asignada.\n\n¡Gracias por reportar!"
)

const rutFormatHint = " Por favor indícamelo (formato: 12345678-9)"

// RUTPrompt asks for the identifier in terms of the detected intent.
func RUTPrompt(intent entities.Intent) string {
	switch intent {
	case entities.IntentCompare:
		return "¡Perfecto! Para comparar tus boletas, necesito tu RUT." + rutFormatHint
	case entities.IntentAmount:
		return "Entendido, para consultar el monto a pagar necesito tu RUT." + rutFormatHint
	case entities.IntentConsumption:
		return "Claro, para revisar tu consumo necesito tu RUT." + rutFormatHint
	case entities.IntentPaymentStatus:
		return "De acuerdo, para verificar el estado necesito tu RUT." + rutFormatHint
	}
	return "¡Perfecto! Para ayudarte, necesito tu RUT." + rutFormatHint
}

var emergencyQuestions = map[string]string{
	entities.KeyEmergencyType: "¿Qué tipo de emergencia es? (rotura de matriz, baja presión, fuga, cañería rota, agua contaminada, sin agua, otro)",
	entities.KeySector:        "¿En qué sector te encuentras? (Anibana, El Molino, La Compañía, El Maitén 1, La Morera, El Maitén 2, Santa Margarita)",
	entities.KeyReporterName:  "¿Cuál es tu nombre completo?",
	entities.KeyAddress:       "¿Cuál es tu dirección exacta?",
	entities.KeyPhone:         "¿Cuál es tu número de teléfono de contacto?",
	entities.KeyDescription:   "¿Podrías describir detalladamente el problema que estás enfrentando?",
}

// EmergencyQuestion returns the question for a missing emergency fact.
func EmergencyQuestion(key string) string {
	if q, ok := emergencyQuestions[key]; ok {
		return q
	}
	return "¿Podrías darme más detalles sobre la emergencia?"
}

var priorityLevels = map[entities.Priority]string{
	entities.PriorityLow:      "🟢 BAJA - Se atenderá en horario normal",
	entities.PriorityMedium:   "🟡 MEDIA - Se atenderá con prioridad",
	entities.PriorityHigh:     "🟠 ALTA - Se atenderá urgentemente",
	entities.PriorityCritical: "🔴 CRÍTICA - Se atenderá de inmediato",
}

var priorityExplanations = map[entities.Priority]string{
	entities.PriorityLow:      "Tu reporte será atendido durante el horario normal de operación (hasta las 17:00).",
	entities.PriorityMedium:   "Tu reporte será atendido con prioridad por nuestro equipo operativo.",
	entities.PriorityHigh:     "Tu reporte será atendido urgentemente. El equipo se contactará contigo pronto.",
	entities.PriorityCritical: "Tu reporte es crítico y será atendido de inmediato, incluso fuera del horario normal.",
}

// PriorityLevel returns the labeled priority line.
func PriorityLevel(p entities.Priority) string {
	if l, ok := priorityLevels[p]; ok {
		return l
	}
	return string(p)
}

// PriorityExplanation describes when the ticket will be attended.
func PriorityExplanation(p entities.Priority) string {
	return priorityExplanations[p]
}
