// Command turnkey-client simulates a single Henry protocol turnstile: it
// presents a card, sends an access request to a validation server, and
// drives its local state machine and display off the response.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/henrycontrol/turnkey/internal/display"
	"github.com/henrycontrol/turnkey/internal/peripherals"
	"github.com/henrycontrol/turnkey/internal/protocol"
	"github.com/henrycontrol/turnkey/internal/transport"
	"github.com/henrycontrol/turnkey/internal/turnstile"
)

const rotationWindow = 5 * time.Second

func main() {
	fs := flag.NewFlagSet("turnkey-client", flag.ExitOnError)
	serverAddr := fs.String("server", "127.0.0.1:7000", "Henry validation server address")
	deviceIDFlag := fs.Int("device", 15, "this turnstile's device id (1-99)")
	card := fs.String("card", "12345678", "card number to present")
	direction := fs.String("direction", "entry", "entry or exit")
	readerFlag := fs.String("reader", "rfid", "rfid, biometric, or keypad")
	pin := fs.String("pin", "", "keypad pin (required when -reader=keypad)")
	fs.Parse(os.Args[1:])

	deviceID, err := protocol.NewDeviceID(*deviceIDFlag)
	if err != nil {
		log.Fatalf("invalid device id: %v", err)
	}

	dir := protocol.DirectionEntry
	if *direction == "exit" {
		dir = protocol.DirectionExit
	}

	lcd := display.NewDefault("DIGITE SEU CODIGO")
	machine := turnstile.New()

	client := transport.NewClient(*serverAddr)
	defer client.Close()
	if err := client.Connect(); err != nil {
		log.Fatalf("connect: %v", err)
	}

	request, err := present(*readerFlag, *card, *pin, dir)
	if err != nil {
		log.Fatalf("present credential: %v", err)
	}

	if _, err := machine.TransitionTo(turnstile.Reading); err != nil {
		log.Fatalf("transition to Reading: %v", err)
	}
	lcd.UpdateFromState(machine.Current())
	printDisplay(lcd)

	if _, err := machine.TransitionTo(turnstile.Validating); err != nil {
		log.Fatalf("transition to Validating: %v", err)
	}
	lcd.UpdateFromState(machine.Current())
	printDisplay(lcd)

	msg, err := request.ToMessage(deviceID)
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	if err := client.Send(msg); err != nil {
		log.Fatalf("send request: %v", err)
	}

	reply, err := client.Recv()
	if err != nil {
		log.Fatalf("recv response: %v", err)
	}
	response, err := protocol.ParseAccessResponse(reply)
	if err != nil {
		log.Fatalf("parse response: %v", err)
	}

	if response.Decision == protocol.DecisionDeny {
		if _, err := machine.TransitionTo(turnstile.Denied); err != nil {
			log.Fatalf("transition to Denied: %v", err)
		}
		lcd.UpdateFromState(machine.Current())
		printDisplay(lcd)
		fmt.Println(response.Message)
		machine.Reset()
		return
	}

	if _, err := machine.TransitionTo(turnstile.Granted); err != nil {
		log.Fatalf("transition to Granted: %v", err)
	}
	lcd.UpdateFromState(machine.Current())
	printDisplay(lcd)

	if _, err := machine.TransitionTo(turnstile.WaitingRotation); err != nil {
		log.Fatalf("transition to WaitingRotation: %v", err)
	}
	lcd.UpdateFromState(machine.Current())
	printDisplay(lcd)
	machine.SetTimeout(rotationWindow, turnstile.RotationTimeout)

	simulateRotation(machine, lcd)
	fmt.Println(response.Message)
	machine.Reset()
}

// simulateRotation waits briefly (100ms) and then always completes the
// rotation: WaitingRotation -> RotationInProgress -> RotationCompleted. It
// does not wait for the rotation window and never calls CheckTimeout, so
// the simulator never reaches RotationTimeout.
func simulateRotation(machine *turnstile.Machine, lcd *display.Display) {
	time.Sleep(100 * time.Millisecond)
	if _, err := machine.TransitionTo(turnstile.RotationInProgress); err != nil {
		return
	}
	lcd.UpdateFromState(machine.Current())
	printDisplay(lcd)

	if _, err := machine.TransitionTo(turnstile.RotationCompleted); err != nil {
		return
	}
	lcd.UpdateFromState(machine.Current())
	printDisplay(lcd)
}

// present drives the peripheral matching readerKind and returns the
// resulting AccessRequest. "rfid" and "biometric" both present card,
// since the mock biometric device keys off the same template identifier
// in this simulator; "keypad" requires pin to be set.
func present(readerKind, card, pin string, dir protocol.AccessDirection) (protocol.AccessRequest, error) {
	switch readerKind {
	case "biometric":
		bio := peripherals.NewMockBiometric()
		defer bio.Close()
		if err := bio.Match(card); err != nil {
			return protocol.AccessRequest{}, err
		}
		event := <-bio.Events()
		return protocol.AccessRequest{
			CardNumber: event.TemplateID,
			Timestamp:  protocol.TimestampFromTime(time.Now()),
			Direction:  dir,
			Reader:     protocol.ReaderBiometric,
		}, nil
	case "keypad":
		if pin == "" {
			return protocol.AccessRequest{}, fmt.Errorf("-pin is required when -reader=keypad")
		}
		keypad := peripherals.NewMockKeypad()
		defer keypad.Close()
		if err := keypad.Enter(pin); err != nil {
			return protocol.AccessRequest{}, err
		}
		event := <-keypad.Events()
		return protocol.AccessRequest{
			CardNumber: card,
			Timestamp:  protocol.TimestampFromTime(time.Now()),
			Direction:  dir,
			Reader:     protocol.ReaderKeypad,
			PIN:        event.Digits,
		}, nil
	default:
		reader := peripherals.NewMockCardReader()
		defer reader.Close()
		if err := reader.Present(card); err != nil {
			return protocol.AccessRequest{}, err
		}
		event := <-reader.Events()
		return protocol.AccessRequest{
			CardNumber: event.CardNumber,
			Timestamp:  protocol.TimestampFromTime(time.Now()),
			Direction:  dir,
			Reader:     protocol.ReaderRFID,
		}, nil
	}
}

func printDisplay(lcd *display.Display) {
	for _, line := range lcd.Lines() {
		fmt.Printf("| %s |\n", line)
	}
}
