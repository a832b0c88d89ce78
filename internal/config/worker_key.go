package config

type WorkerKeyStruct struct {
	MailOutboxQueue    string
	ProctorEventsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	MailOutboxQueue:    "mail_outbox_queue",
	ProctorEventsQueue: "proctor_events_queue",
}
